package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/polarline/hvacdesk/internal/platform/cache"
	"github.com/polarline/hvacdesk/internal/platform/docstore"
)

// ProductsCollection stores catalog overrides, one document per product.
const ProductsCollection = "products"

// Provider serves Reference with the product table read from the document
// store, falling back to the base catalog when the collection is empty.
type Provider struct {
	store  docstore.Store
	cache  *cache.Versioned
	base   Reference
	logger *slog.Logger
	group  singleflight.Group
}

// NewProvider wires a provider. store and cache may be nil.
func NewProvider(store docstore.Store, c *cache.Versioned, base Reference, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{store: store, cache: c, base: base, logger: logger}
}

// Get returns the current reference tables.
func (p *Provider) Get(ctx context.Context) (Reference, error) {
	key, err := p.cache.Key(ctx, "tables")
	if err != nil {
		p.logger.Warn("reference cache key", slog.Any("error", err))
		return p.load(ctx)
	}
	resultCh := p.group.DoChan(key, func() (any, error) {
		var ref Reference
		err := p.cache.FetchJSON(ctx, key, &ref, func(ctx context.Context) (any, error) {
			return p.load(ctx)
		})
		if err != nil {
			p.logger.Warn("reference cache fetch", slog.Any("error", err))
			return p.load(ctx)
		}
		return ref, nil
	})
	select {
	case <-ctx.Done():
		return Reference{}, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return Reference{}, res.Err
		}
		return res.Val.(Reference), nil
	}
}

func (p *Provider) load(ctx context.Context) (Reference, error) {
	ref := p.base
	if p.store == nil {
		return ref, nil
	}
	docs, err := p.store.List(ctx, ProductsCollection, docstore.ListOptions{OrderBy: "id"})
	if err != nil {
		return Reference{}, fmt.Errorf("reference: list products: %w", err)
	}
	if len(docs) == 0 {
		return ref, nil
	}
	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		var product Product
		if err := json.Unmarshal(doc.Body, &product); err != nil {
			p.logger.Warn("skip malformed product", slog.String("id", doc.ID), slog.Any("error", err))
			continue
		}
		if product.ID == "" {
			product.ID = doc.ID
		}
		products = append(products, product)
	}
	ref.Products = products
	return ref, nil
}

// Seed writes the base catalog into the products collection, overwriting
// entries that already exist, and invalidates the cache.
func (p *Provider) Seed(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, errors.New("reference: no store configured")
	}
	written := 0
	for _, product := range p.base.Products {
		body, err := json.Marshal(product)
		if err != nil {
			return written, err
		}
		_, err = p.store.Create(ctx, ProductsCollection, docstore.Document{ID: product.ID, Body: body})
		if errors.Is(err, docstore.ErrConflict) {
			err = p.store.Update(ctx, ProductsCollection, product.ID, body)
		}
		if err != nil {
			return written, fmt.Errorf("reference: seed %s: %w", product.ID, err)
		}
		written++
	}
	if err := p.cache.Bump(ctx); err != nil {
		p.logger.Warn("reference cache bump", slog.Any("error", err))
	}
	return written, nil
}
