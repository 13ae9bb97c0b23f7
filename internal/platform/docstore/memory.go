package docstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used for development and tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	now         func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]Document),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Create(_ context.Context, collection string, doc Document) (string, error) {
	if err := validBody(doc.Body); err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		m.collections[collection] = docs
	}
	if _, exists := docs[doc.ID]; exists {
		return "", ErrConflict
	}
	now := m.now()
	docs[doc.ID] = Document{
		ID:        doc.ID,
		Body:      append(json.RawMessage(nil), doc.Body...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return doc.ID, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, patch json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeJSON(doc.Body, patch)
	if err != nil {
		return err
	}
	doc.Body = merged
	doc.UpdatedAt = m.now()
	m.collections[collection][id] = doc
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Body = append(json.RawMessage(nil), doc.Body...)
	return doc, nil
}

// List returns documents ordered by opts, falling back to creation order.
func (m *Memory) List(_ context.Context, collection string, opts ListOptions) ([]Document, error) {
	m.mu.RLock()
	docs := make([]Document, 0, len(m.collections[collection]))
	for _, doc := range m.collections[collection] {
		doc.Body = append(json.RawMessage(nil), doc.Body...)
		docs = append(docs, doc)
	}
	m.mu.RUnlock()
	sortByCreated(docs)
	return sortDocuments(docs, opts), nil
}
