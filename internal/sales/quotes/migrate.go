package quotes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
)

// SchemaVersion is the version written by Save. Version 1 documents predate
// tagged line items and kept their totals as flat fields.
const SchemaVersion = 2

// Defaults fills fields absent from older documents.
type Defaults struct {
	ForexRate float64
	SaleType  pricing.SaleType
}

type storedQuote struct {
	Quote
	Items []json.RawMessage `json:"items"`

	LegacyFinal     *float64 `json:"finalSalePrice"`
	LegacyMargin    *float64 `json:"grossMargin"`
	LegacyMarginPct *float64 `json:"marginPct"`
	LegacyCost      *float64 `json:"totalCost"`
}

// legacyItem is a version 1 line item; sale and cost were optional and spelled
// several ways.
type legacyItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	PriceUSD     *float64        `json:"priceUSD"`
	SalePriceUSD *float64        `json:"salePriceUSD"`
	SalePrice    *float64        `json:"salePrice"`
	CostPriceUSD *float64        `json:"costPriceUSD"`
	CostPrice    *float64        `json:"costPrice"`
	Quantity     json.RawMessage `json:"quantity"`
	IsManual     bool            `json:"isManual"`
}

// Migrate decodes a stored quote of any schema version and upgrades it to
// SchemaVersion.
func Migrate(data []byte, d Defaults) (*Quote, error) {
	var stored storedQuote
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("quote: decode: %w", err)
	}
	q := stored.Quote
	version := q.SchemaVersion

	q.Items = make([]LineItem, 0, len(stored.Items))
	for i, raw := range stored.Items {
		item, err := decodeItem(raw)
		if err != nil {
			return nil, fmt.Errorf("quote: item %d: %w", i, err)
		}
		q.Items = append(q.Items, item)
	}

	if version < 2 {
		if q.Totals == nil && stored.LegacyFinal != nil {
			q.Totals = &pricing.Totals{
				FinalSalePrice: *stored.LegacyFinal,
				GrossMargin:    deref(stored.LegacyMargin),
				MarginPct:      deref(stored.LegacyMarginPct),
				CostSubtotal:   deref(stored.LegacyCost),
			}
		}
		if !q.Options.Any() {
			q.Options.Quotation = true
		}
	}

	if q.Status == "" {
		q.Status = StatusDraft
	}
	if q.Costing.ForexRate <= 0 {
		q.Costing.ForexRate = d.ForexRate
	}
	if q.Customer.SaleType == "" {
		q.Customer.SaleType = d.SaleType
	}
	if q.Control.Year == 0 && !q.CreatedAt.IsZero() {
		q.Control.Year = q.CreatedAt.Year()
	}
	if q.ID == "" && q.Control.QuoteNumber > 0 && q.Control.Year > 0 {
		q.ID = FormatID(q.Control.QuoteNumber, q.Control.Year, q.Control.Revision)
	}
	if q.Key == "" {
		q.Key = StorageKey(q.ID)
	}
	if q.Control.QuoteNumber == 0 {
		if n, ok := ParseNumber(q.ID); ok {
			q.Control.QuoteNumber = n
		}
	}
	q.Normalize()
	q.SchemaVersion = SchemaVersion
	return &q, nil
}

func decodeItem(raw json.RawMessage) (LineItem, error) {
	var probe struct {
		Kind ItemKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return LineItem{}, err
	}
	if probe.Kind != "" {
		var item LineItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return LineItem{}, err
		}
		return item, nil
	}

	var legacy legacyItem
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return LineItem{}, err
	}
	sale := firstOf(legacy.SalePrice, legacy.SalePriceUSD, legacy.PriceUSD)
	qty := legacyQuantity(legacy.Quantity)

	if legacy.IsManual || strings.HasPrefix(legacy.ID, "manual-") {
		return LineItem{
			Kind:     ItemManual,
			Quantity: qty,
			Manual: &ManualEntry{
				ID:          legacy.ID,
				Name:        legacy.Name,
				Description: legacy.Description,
				SalePrice:   sale,
				CostPrice:   firstPtr(legacy.CostPrice, legacy.CostPriceUSD),
			},
		}, nil
	}
	return LineItem{
		Kind:     ItemCatalog,
		Quantity: qty,
		Product: &reference.Product{
			ID:        legacy.ID,
			Name:      legacy.Name,
			Category:  legacy.Category,
			SalePrice: sale,
			CostPrice: firstOf(legacy.CostPrice, legacy.CostPriceUSD),
		},
	}, nil
}

func legacyQuantity(raw json.RawMessage) int {
	text := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	return max(pricing.ParseQuantity(text), 1)
}

func firstPtr(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			c := *v
			return &c
		}
	}
	return nil
}

func firstOf(values ...*float64) float64 {
	return deref(firstPtr(values...))
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
