package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/polarline/hvacdesk/internal/app"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
	"github.com/polarline/hvacdesk/internal/sales/quotes"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.StoreDriver == "memory" {
		log.Fatal("STORE_DRIVER=memory keeps nothing; pick mongo, postgres or sqlite")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	stack, err := app.BuildQuoteStack(ctx, cfg, logger, nil)
	if err != nil {
		log.Fatalf("build quote stack: %v", err)
	}
	defer func() { _ = stack.Close(ctx) }()

	fmt.Println("→ Seeding catalog...")
	written, err := stack.Reference.Seed(ctx)
	if err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	fmt.Printf("  %d products\n", written)

	fmt.Println("→ Seeding sample quote...")
	existing, err := stack.Quotes.List(ctx, quotes.ListOptions{Limit: 1})
	if err != nil {
		log.Fatalf("list quotes: %v", err)
	}
	if len(existing) > 0 {
		fmt.Println("  quotes already present, skipped")
		return
	}
	saved, err := seedSampleQuote(ctx, stack)
	if err != nil {
		log.Fatalf("seed sample quote: %v", err)
	}
	fmt.Printf("  saved %s\n", saved.ID)
	fmt.Println("✓ Seed complete")
}

func seedSampleQuote(ctx context.Context, stack *app.QuoteStack) (*quotes.Quote, error) {
	ref, err := stack.Reference.Get(ctx)
	if err != nil {
		return nil, err
	}
	product, ok := ref.Product("DCT-5.0TR")
	if !ok {
		return nil, errors.New("catalog has no DCT-5.0TR")
	}
	draft, err := stack.Quotes.NewDraft(ctx)
	if err != nil {
		return nil, err
	}
	draft.Customer = quotes.Customer{
		Name:           "Harbor View Suites",
		BillingAddress: "12 Roxas Blvd, Pasay City",
		SaleType:       pricing.SaleDomestic,
		PricingTier:    "Dealer",
	}
	draft.Terms.ShippingTerms = "Delivered, Metro Manila"
	draft.Terms.DeliveryTime = "2-3 weeks"
	draft.Items = []quotes.LineItem{
		quotes.NewCatalogItem(product, 2),
		quotes.NewManualItem("Installation", "Labor and materials", 500, nil, 1),
	}
	if err := stack.Quotes.ApplyTier(ctx, draft); err != nil {
		return nil, err
	}
	return stack.Quotes.Save(ctx, draft)
}
