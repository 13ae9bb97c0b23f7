// Package docstore persists JSON documents in keyed collections.
//
// A collection holds independent documents addressed by id. There are no
// cross-document transactions; concurrent writers follow last-write-wins.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned by Create when the id is already taken.
	ErrConflict = errors.New("docstore: document already exists")
)

// Document is one stored JSON body.
type Document struct {
	ID        string          `json:"id"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListOptions orders List results by a top-level body field.
type ListOptions struct {
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the persistence adapter used by the domain packages.
type Store interface {
	// Create stores doc and returns its id. An empty doc.ID gets a generated one.
	Create(ctx context.Context, collection string, doc Document) (string, error)
	// Update merges the top-level fields of patch into the stored body.
	Update(ctx context.Context, collection, id string, patch json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, opts ListOptions) ([]Document, error)
}
