package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/polarline/hvacdesk/internal/platform/docstore"
)

// Collection holds one document per quote, keyed by StorageKey.
const Collection = "quotes"

// ErrDuplicate is returned by Create when the key is already taken.
var ErrDuplicate = errors.New("quote: key already exists")

// Repository persists quotes.
type Repository interface {
	Create(ctx context.Context, q *Quote) error
	Replace(ctx context.Context, q *Quote) error
	Patch(ctx context.Context, key string, updates map[string]any) error
	Get(ctx context.Context, key string) (*Quote, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, opts docstore.ListOptions) ([]*Quote, error)
}

type docRepository struct {
	store    docstore.Store
	defaults Defaults
	logger   *slog.Logger
}

// NewRepository stores quotes in the document store. Documents are migrated
// with d on every read.
func NewRepository(store docstore.Store, d Defaults, logger *slog.Logger) Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &docRepository{store: store, defaults: d, logger: logger}
}

func (r *docRepository) Create(ctx context.Context, q *Quote) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	_, err = r.store.Create(ctx, Collection, docstore.Document{ID: q.Key, Body: body})
	if errors.Is(err, docstore.ErrConflict) {
		return ErrDuplicate
	}
	return err
}

// Replace writes every top-level field of q over the stored document.
func (r *docRepository) Replace(ctx context.Context, q *Quote) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	return r.mapErr(r.store.Update(ctx, Collection, q.Key, body))
}

func (r *docRepository) Patch(ctx context.Context, key string, updates map[string]any) error {
	body, err := json.Marshal(updates)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	return r.mapErr(r.store.Update(ctx, Collection, key, body))
}

func (r *docRepository) Get(ctx context.Context, key string) (*Quote, error) {
	doc, err := r.store.Get(ctx, Collection, key)
	if err != nil {
		return nil, r.mapErr(err)
	}
	return r.decode(doc)
}

func (r *docRepository) Delete(ctx context.Context, key string) error {
	return r.mapErr(r.store.Delete(ctx, Collection, key))
}

// List skips documents that cannot be decoded.
func (r *docRepository) List(ctx context.Context, opts docstore.ListOptions) ([]*Quote, error) {
	docs, err := r.store.List(ctx, Collection, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*Quote, 0, len(docs))
	for _, doc := range docs {
		q, err := r.decode(doc)
		if err != nil {
			r.logger.Warn("skip unreadable quote", slog.String("key", doc.ID), slog.Any("error", err))
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (r *docRepository) decode(doc docstore.Document) (*Quote, error) {
	q, err := Migrate(doc.Body, r.defaults)
	if err != nil {
		return nil, err
	}
	q.Key = doc.ID
	if q.CreatedAt.IsZero() {
		q.CreatedAt = doc.CreatedAt
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = doc.UpdatedAt
	}
	return q, nil
}

func (r *docRepository) mapErr(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
