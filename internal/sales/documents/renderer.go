// Package documents renders quotes into printable HTML documents.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
	"github.com/polarline/hvacdesk/internal/sales/quotes"
	"github.com/polarline/hvacdesk/internal/view"
)

// Document kinds, also used as CSS classes and metric labels.
const (
	KindQuotation       = "quotation"
	KindProForma        = "proforma"
	KindTaxInvoice      = "tax-invoice"
	KindDeliveryReceipt = "delivery-receipt"
	KindOfficialReceipt = "official-receipt"
)

// Metrics counts rendered documents.
type Metrics interface {
	DocumentRendered(kind string)
}

// Renderer builds the HTML bundle for a quote.
type Renderer struct {
	ref     quotes.ReferenceSource
	engine  *view.Engine
	logo    template.URL
	metrics Metrics
	now     func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogo embeds a data URI logo in every header.
func WithLogo(uri template.URL) Option {
	return func(r *Renderer) { r.logo = uri }
}

// WithMetrics records each rendered document.
func WithMetrics(m Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

// WithClock overrides the document date source.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer parses the document templates.
func NewRenderer(ref quotes.ReferenceSource, opts ...Option) (*Renderer, error) {
	engine, err := view.NewEngine(nil, "templates/documents/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	r := &Renderer{ref: ref, engine: engine, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render loads the reference tables and renders q.
func (r *Renderer) Render(ctx context.Context, q *quotes.Quote) (string, error) {
	ref, err := r.ref.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load reference: %w", err)
	}
	return r.RenderWith(ref, q)
}

// RenderWith renders the selected documents of q, each after the first on a
// new page. With nothing selected the quotation is rendered.
func (r *Renderer) RenderWith(ref reference.Reference, q *quotes.Quote) (string, error) {
	pages := r.pages(ref, q)
	var buf bytes.Buffer
	if err := r.engine.Execute(&buf, "bundle", bundle{Title: displayID(q), Pages: pages}); err != nil {
		return "", fmt.Errorf("render documents: %w", err)
	}
	if r.metrics != nil {
		for _, p := range pages {
			r.metrics.DocumentRendered(p.Kind)
		}
	}
	return buf.String(), nil
}

type bundle struct {
	Title string
	Pages []page
}

type page struct {
	Kind       string
	Title      string
	Number     string
	Reference  string
	Date       string
	Company    reference.Company
	Logo       template.URL
	Customer   quotes.Customer
	ShipTo     string
	ShipOnly   bool
	Terms      quotes.CommercialTerms
	Control    quotes.DocumentControl
	Currency   Currency
	Lines      []lineRow
	ShowPrices bool
	Totals     *totalsBlock
	Tax        *taxBlock
	Landed     *landedBlock
	Bank       *reference.BankAccount
	Warranty   string
}

type lineRow struct {
	No          int
	Name        string
	Description string
	Remarks     string
	Qty         int
	Unit        string
	Amount      string
}

type totalsBlock struct {
	Subtotal    string
	Discount    string
	DiscountPct string
	HasDiscount bool
	Total       string
}

type taxBlock struct {
	TotalSales     string
	VATable        string
	Exempt         string
	ZeroRated      string
	VAT            string
	VATRate        string
	Withholding    string
	WithholdingPct string
	AmountDue      string
}

type landedBlock struct {
	Currency     string
	Transport    string
	CIF          string
	DutiesPct    string
	Duties       string
	CustomsValue string
	ImportVATPct string
	ImportVAT    string
	BrokerFees   string
	Total        string
}

func (r *Renderer) pages(ref reference.Reference, q *quotes.Quote) []page {
	opts := q.Options
	if !opts.Any() {
		opts.Quotation = true
	}
	rate := q.Costing.ForexRate
	if rate <= 0 {
		rate = 1
	}
	totals := q.Calculate()
	base := page{
		Reference: displayID(q),
		Date:      r.now().Format("January 2, 2006"),
		Company:   ref.Company,
		Logo:      r.logo,
		Customer:  q.Customer,
		ShipTo:    q.Customer.ShipTo(),
		Terms:     q.Terms,
		Control:   q.Control,
	}

	var out []page
	if opts.Quotation {
		p := base
		p.Kind, p.Title, p.Number = KindQuotation, "Sales Quotation", displayID(q)
		p.Warranty = ref.Company.Warranty
		r.priced(&p, q, totals, opts.LocalCurrency, rate)
		if opts.IncludeLandedCost {
			p.Landed = landed(pricing.Landed(totals.FinalSalePrice, q.Costing), q.Costing)
		}
		out = append(out, p)
	}
	if opts.ProForma {
		p := base
		p.Kind, p.Title, p.Number = KindProForma, "Pro-Forma Invoice", "PF-"+displayID(q)
		r.priced(&p, q, totals, opts.LocalCurrency, rate)
		if bank, ok := ref.Bank(p.Currency.Code); ok {
			p.Bank = &bank
		}
		out = append(out, p)
	}
	tax := pricing.TaxInvoice(pricing.ToLocal(totals.FinalSalePrice, rate), q.Customer.SaleType, q.Terms.WithholdingPct, ref.VATRate())
	if opts.TaxInvoice {
		p := base
		p.Kind, p.Title, p.Number = KindTaxInvoice, "Sales Invoice", fmt.Sprintf("%04d", q.Control.QuoteNumber)
		r.priced(&p, q, totals, true, rate)
		p.Totals = nil
		p.Tax = taxSection(tax, q.Terms.WithholdingPct, ref.VATRate())
		out = append(out, p)
	}
	if opts.DeliveryReceipt {
		p := base
		p.Kind, p.Title, p.Number = KindDeliveryReceipt, "Delivery Receipt", "DR-"+displayID(q)
		p.ShipOnly = true
		p.Currency = USD
		p.Lines = rows(q.Items)
		out = append(out, p)
	}
	if opts.OfficialReceipt {
		p := base
		p.Kind, p.Title, p.Number = KindOfficialReceipt, "Official Receipt", fmt.Sprintf("%04d", q.Control.QuoteNumber)
		p.Currency = PHP
		p.Tax = taxSection(tax, q.Terms.WithholdingPct, ref.VATRate())
		out = append(out, p)
	}
	return out
}

// priced fills the item table and totals in base or local currency. Local
// amounts are converted exactly once from the base figures.
func (r *Renderer) priced(p *page, q *quotes.Quote, totals pricing.Totals, local bool, rate float64) {
	p.Currency, p.ShowPrices = USD, true
	factor := 1.0
	if local {
		p.Currency, factor = PHP, rate
		totals = totals.Convert(rate)
	}
	p.Lines = rows(q.Items)
	for i, item := range q.Items {
		p.Lines[i].Unit = p.Currency.Format(item.EffectiveSalePrice() * factor)
		p.Lines[i].Amount = p.Currency.Format(pricing.LineTotal(item) * factor)
	}
	p.Totals = &totalsBlock{
		Subtotal:    p.Currency.Format(totals.Subtotal),
		Discount:    p.Currency.Format(totals.DiscountAmount),
		DiscountPct: FormatPct(pricing.ClampPct(q.Terms.DiscountPct)),
		HasDiscount: totals.DiscountAmount > 0,
		Total:       p.Currency.Format(totals.FinalSalePrice),
	}
}

func rows(items []quotes.LineItem) []lineRow {
	out := make([]lineRow, len(items))
	for i, item := range items {
		out[i] = lineRow{
			No:          i + 1,
			Name:        item.Name(),
			Description: item.Description(),
			Remarks:     item.Remarks,
			Qty:         item.Qty(),
		}
	}
	return out
}

func taxSection(b pricing.TaxBreakdown, whtPct, vatRate float64) *taxBlock {
	if b.SaleType != pricing.SaleDomestic {
		whtPct = 0
	}
	return &taxBlock{
		TotalSales:     PHP.Format(b.TotalSales),
		VATable:        PHP.Format(b.VATable),
		Exempt:         PHP.Format(b.Exempt),
		ZeroRated:      PHP.Format(b.ZeroRated),
		VAT:            PHP.Format(b.VAT),
		VATRate:        FormatPct(vatRate),
		Withholding:    PHP.Format(b.Withholding),
		WithholdingPct: FormatPct(whtPct),
		AmountDue:      PHP.Format(b.AmountDue),
	}
}

// landed is always shown in the base currency.
func landed(l pricing.LandedCost, c pricing.Costing) *landedBlock {
	return &landedBlock{
		Currency:     USD.Code,
		Transport:    USD.Format(c.Transport),
		CIF:          USD.Format(l.CIF),
		DutiesPct:    FormatPct(pricing.ClampPct(c.DutiesPct)),
		Duties:       USD.Format(l.Duties),
		CustomsValue: USD.Format(l.CustomsValue),
		ImportVATPct: FormatPct(pricing.ClampPct(c.ImportVATPct)),
		ImportVAT:    USD.Format(l.ImportVAT),
		BrokerFees:   USD.Format(c.BrokerFees),
		Total:        USD.Format(l.Total),
	}
}

func displayID(q *quotes.Quote) string {
	if q.ID == "" {
		return "DRAFT"
	}
	return q.ID
}
