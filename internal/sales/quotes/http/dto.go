package quoteshttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/polarline/hvacdesk/internal/masterdata/reference"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
	"github.com/polarline/hvacdesk/internal/sales/quotes"
)

var validate = validator.New()

// flexNumber accepts 12.5, "12.5", "$1,250.00" or null. Text that does not
// parse becomes 0.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*n = 0
			return nil
		}
		*n = flexNumber(pricing.ParseAmount(s))
		return nil
	}
	*n = flexNumber(pricing.ParseAmount(string(b)))
	return nil
}

func (n *flexNumber) value() float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

// flexQuantity is a lenient whole quantity; fractions are truncated.
type flexQuantity int

func (q *flexQuantity) UnmarshalJSON(b []byte) error {
	var n flexNumber
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	*q = flexQuantity(pricing.ParseQuantity(fmt.Sprintf("%f", float64(n))))
	return nil
}

// manualRequest is the nested manual entry returned by a load.
type manualRequest struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SalePrice   flexNumber  `json:"sale_price"`
	CostPrice   *flexNumber `json:"cost_price"`
}

// lineItemRequest accepts both the flat form fields and the stored shape
// with a nested product or manual object.
type lineItemRequest struct {
	Kind        string             `json:"kind"`
	ProductID   string             `json:"product_id"`
	Product     *reference.Product `json:"product"`
	Manual      *manualRequest     `json:"manual"`
	ManualID    string             `json:"manual_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	SalePrice   flexNumber         `json:"sale_price"`
	CostPrice   *flexNumber        `json:"cost_price"`
	Quantity    flexQuantity       `json:"quantity"`
	Remarks     string             `json:"remarks"`
}

type termsRequest struct {
	ShippingTerms  string      `json:"shipping_terms"`
	DeliveryTime   string      `json:"delivery_time"`
	DueDate        string      `json:"due_date"`
	DiscountPct    *flexNumber `json:"discount_pct"`
	WithholdingPct flexNumber  `json:"withholding_pct"`
}

type costingRequest struct {
	ForexRate    flexNumber `json:"forex_rate"`
	Transport    flexNumber `json:"transport"`
	DutiesPct    flexNumber `json:"duties_pct"`
	ImportVATPct flexNumber `json:"import_vat_pct"`
	BrokerFees   flexNumber `json:"broker_fees"`
}

// quoteRequest is the editable draft posted by the form. Key is set when an
// existing quote is being edited.
type quoteRequest struct {
	Key      string                 `json:"key"`
	Customer quotes.Customer        `json:"customer"`
	Terms    termsRequest           `json:"terms"`
	Control  quotes.DocumentControl `json:"control"`
	Costing  costingRequest         `json:"costing"`
	Options  quotes.DocumentOptions `json:"options"`
	Items    []lineItemRequest      `json:"items"`
}

// hasDiscount reports whether the client sent a discount explicitly.
func (req quoteRequest) hasDiscount() bool { return req.Terms.DiscountPct != nil }

// toQuote resolves catalog ids against ref. Items that name an unknown
// product are reported per index.
func (req quoteRequest) toQuote(ref reference.Reference, defaultForex float64) (*quotes.Quote, error) {
	forex := req.Costing.ForexRate.value()
	if forex <= 0 {
		forex = defaultForex
	}
	saleType := req.Customer.SaleType
	if saleType == "" {
		saleType = pricing.SaleDomestic
	}
	q := &quotes.Quote{
		Key:      strings.TrimSpace(req.Key),
		Status:   quotes.StatusDraft,
		Customer: req.Customer,
		Terms: quotes.CommercialTerms{
			ShippingTerms:  strings.TrimSpace(req.Terms.ShippingTerms),
			DeliveryTime:   strings.TrimSpace(req.Terms.DeliveryTime),
			DueDate:        strings.TrimSpace(req.Terms.DueDate),
			DiscountPct:    req.Terms.DiscountPct.value(),
			WithholdingPct: req.Terms.WithholdingPct.value(),
		},
		Control: req.Control,
		Costing: pricing.Costing{
			ForexRate:    forex,
			Transport:    req.Costing.Transport.value(),
			DutiesPct:    req.Costing.DutiesPct.value(),
			ImportVATPct: req.Costing.ImportVATPct.value(),
			BrokerFees:   req.Costing.BrokerFees.value(),
		},
		Options: req.Options,
		Items:   make([]quotes.LineItem, 0, len(req.Items)),
	}
	q.Customer.SaleType = saleType
	if !q.Options.Any() {
		q.Options.Quotation = true
	}

	fields := map[string]string{}
	for i, in := range req.Items {
		item, msg := in.toLineItem(ref)
		if msg != "" {
			fields[fmt.Sprintf("items[%d]", i)] = msg
			continue
		}
		q.Items = append(q.Items, item)
	}
	if len(fields) > 0 {
		return nil, &quotes.ValidationError{Fields: fields}
	}
	return q, nil
}

func (in lineItemRequest) toLineItem(ref reference.Reference) (quotes.LineItem, string) {
	qty := int(in.Quantity)
	kind := quotes.ItemKind(in.Kind)
	if kind == "" {
		kind = quotes.ItemManual
		if in.ProductID != "" || in.Product != nil {
			kind = quotes.ItemCatalog
		}
	}

	if kind != quotes.ItemCatalog && kind != quotes.ItemManual {
		return quotes.LineItem{}, "kind must be catalog or manual"
	}
	if kind == quotes.ItemCatalog {
		if in.Product != nil {
			item := quotes.NewCatalogItem(*in.Product, qty)
			item.Remarks = in.Remarks
			return item, ""
		}
		p, ok := ref.Product(in.ProductID)
		if !ok {
			return quotes.LineItem{}, fmt.Sprintf("unknown product %q", in.ProductID)
		}
		item := quotes.NewCatalogItem(p, qty)
		item.Remarks = in.Remarks
		return item, ""
	}

	entry := manualRequest{
		ID:          in.ManualID,
		Name:        in.Name,
		Description: in.Description,
		SalePrice:   in.SalePrice,
		CostPrice:   in.CostPrice,
	}
	if in.Manual != nil {
		entry = *in.Manual
	}
	var cost *float64
	if entry.CostPrice != nil {
		c := entry.CostPrice.value()
		cost = &c
	}
	item := quotes.NewManualItem(strings.TrimSpace(entry.Name), entry.Description, entry.SalePrice.value(), cost, qty)
	if entry.ID != "" {
		item.Manual.ID = entry.ID
	}
	item.Remarks = in.Remarks
	return item, ""
}

type statusRequest struct {
	Status quotes.Status `json:"status" validate:"required,oneof=DRAFT SENT APPROVED DECLINED INVOICED EXPIRED CANCELLED"`
}

type archiveRequest struct {
	Options *quotes.DocumentOptions `json:"options"`
}

type quoteSummary struct {
	Key        string        `json:"key"`
	ID         string        `json:"id"`
	Customer   string        `json:"customer"`
	Status     quotes.Status `json:"status"`
	FinalPrice float64       `json:"final_sale_price"`
	UpdatedAt  string        `json:"updated_at"`
}

func summarize(q *quotes.Quote) quoteSummary {
	s := quoteSummary{
		Key:       q.Key,
		ID:        q.ID,
		Customer:  q.Customer.Name,
		Status:    q.Status,
		UpdatedAt: q.UpdatedAt.Format(time.RFC3339),
	}
	if q.Totals != nil {
		s.FinalPrice = q.Totals.FinalSalePrice
	}
	return s
}
