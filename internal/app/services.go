package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/platform/cache"
	"github.com/polarline/hvacdesk/internal/platform/docstore"
	"github.com/polarline/hvacdesk/internal/sales/documents"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
	"github.com/polarline/hvacdesk/internal/sales/quotes"
)

// QuoteStack is the set of components shared by the server and the worker.
type QuoteStack struct {
	Store     docstore.Store
	Reference *reference.Provider
	Renderer  *documents.Renderer
	Quotes    *quotes.Service

	closers []func(context.Context) error
}

// Close releases the store and the Redis client.
func (s *QuoteStack) Close(ctx context.Context) error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BuildQuoteStack opens the document store, the reference provider and the
// quote service. Redis is optional: without it reference tables are read
// from the store on every call.
func BuildQuoteStack(ctx context.Context, cfg *Config, logger *slog.Logger, metrics documents.Metrics) (*QuoteStack, error) {
	stack := &QuoteStack{}

	store, closeStore, err := docstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	stack.Store = store
	stack.closers = append(stack.closers, closeStore)

	var versioned *cache.Versioned
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("reference cache disabled", slog.Any("error", err))
		} else {
			versioned = cache.NewVersioned(client, "reference", cfg.ReferenceCacheTTL)
			stack.closers = append(stack.closers, closeRedis(client))
		}
	}

	base, err := reference.Default()
	if err != nil {
		_ = stack.Close(ctx)
		return nil, err
	}
	if cfg.ReferenceFile != "" {
		if base, err = reference.LoadFile(cfg.ReferenceFile, base); err != nil {
			_ = stack.Close(ctx)
			return nil, fmt.Errorf("load reference file: %w", err)
		}
	}
	stack.Reference = reference.NewProvider(store, versioned, base, logger)

	opts := []documents.Option{documents.WithMetrics(metrics)}
	if cfg.CompanyLogoPath != "" {
		logo, err := documents.LoadLogo(cfg.CompanyLogoPath)
		if err != nil {
			logger.Warn("company logo ignored", slog.String("path", cfg.CompanyLogoPath), slog.Any("error", err))
		} else {
			opts = append(opts, documents.WithLogo(logo))
		}
	}
	renderer, err := documents.NewRenderer(stack.Reference, opts...)
	if err != nil {
		_ = stack.Close(ctx)
		return nil, err
	}
	stack.Renderer = renderer

	repo := quotes.NewRepository(store, quotes.Defaults{
		ForexRate: cfg.DefaultForexRate,
		SaleType:  pricing.SaleDomestic,
	}, logger)
	stack.Quotes = quotes.NewService(repo, stack.Reference, renderer, quotes.Config{
		SeedNumber:       cfg.QuoteSeedNumber,
		DefaultForexRate: cfg.DefaultForexRate,
	}, logger)
	return stack, nil
}

func closeRedis(client *redis.Client) func(context.Context) error {
	return func(context.Context) error { return client.Close() }
}
