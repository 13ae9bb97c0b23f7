package quotes

import (
	"math"
	"strings"
	"time"

	"github.com/polarline/hvacdesk/internal/platform/archive"
	"github.com/polarline/hvacdesk/internal/sales/pricing"
)

// Status is the quote lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusApproved  Status = "APPROVED"
	StatusDeclined  Status = "DECLINED"
	StatusInvoiced  Status = "INVOICED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusDraft:    {StatusSent, StatusCancelled},
	StatusSent:     {StatusApproved, StatusDeclined, StatusExpired, StatusCancelled},
	StatusDeclined: {StatusDraft},
	StatusExpired:  {StatusDraft},
	StatusApproved: {StatusInvoiced, StatusCancelled},
}

// CanTransitionTo reports whether s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Contact is the optional person linked to a customer.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

// Customer is the buyer block printed on every document.
type Customer struct {
	Name            string           `json:"name" validate:"required"`
	Number          string           `json:"customer_number,omitempty"`
	TIN             string           `json:"tin,omitempty"`
	BillingAddress  string           `json:"billing_address"`
	DeliveryAddress string           `json:"delivery_address,omitempty"`
	SaleType        pricing.SaleType `json:"sale_type" validate:"oneof=Export Domestic"`
	Contact         *Contact         `json:"contact,omitempty"`
	PricingTier     string           `json:"pricing_tier,omitempty"`
}

// ShipTo is the delivery address, or the billing address when none is set.
func (c Customer) ShipTo() string {
	if strings.TrimSpace(c.DeliveryAddress) == "" {
		return c.BillingAddress
	}
	return c.DeliveryAddress
}

// CommercialTerms are the negotiated conditions of the sale.
type CommercialTerms struct {
	ShippingTerms  string  `json:"shipping_terms,omitempty"`
	DeliveryTime   string  `json:"delivery_time,omitempty"`
	DueDate        string  `json:"due_date,omitempty"`
	DiscountPct    float64 `json:"discount_pct" validate:"gte=0,lte=100"`
	WithholdingPct float64 `json:"withholding_pct" validate:"gte=0,lte=100"`
}

// DocumentControl numbers the quote.
type DocumentControl struct {
	QuoteNumber  int    `json:"quote_number" validate:"gte=0"`
	Year         int    `json:"year,omitempty"`
	Revision     string `json:"revision,omitempty" validate:"omitempty,alphanum,max=8"`
	PaymentTerms string `json:"payment_terms,omitempty"`
}

// DocumentOptions chooses which documents to print and how.
type DocumentOptions struct {
	Quotation         bool `json:"quotation"`
	ProForma          bool `json:"pro_forma"`
	TaxInvoice        bool `json:"tax_invoice"`
	DeliveryReceipt   bool `json:"delivery_receipt"`
	OfficialReceipt   bool `json:"official_receipt"`
	LocalCurrency     bool `json:"local_currency"`
	IncludeLandedCost bool `json:"include_landed_cost"`
}

// Any reports whether at least one document is selected.
func (o DocumentOptions) Any() bool {
	return o.Quotation || o.ProForma || o.TaxInvoice || o.DeliveryReceipt || o.OfficialReceipt
}

// ArchivedDocument references a PDF stored in object storage.
type ArchivedDocument struct {
	archive.Object
	Options DocumentOptions `json:"options"`
}

// Quote is the persisted aggregate. Top-level fields are never omitted so a
// whole-document write replaces every field.
type Quote struct {
	ID            string             `json:"id"`
	Key           string             `json:"key"`
	SchemaVersion int                `json:"schema_version"`
	Status        Status             `json:"status" validate:"omitempty,oneof=DRAFT SENT APPROVED DECLINED INVOICED EXPIRED CANCELLED"`
	Customer      Customer           `json:"customer"`
	Terms         CommercialTerms    `json:"terms"`
	Control       DocumentControl    `json:"control"`
	Costing       pricing.Costing    `json:"costing"`
	Options       DocumentOptions    `json:"options"`
	Items         []LineItem         `json:"items" validate:"dive"`
	Totals        *pricing.Totals    `json:"totals"`
	Archives      []ArchivedDocument `json:"archives"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Calculate derives the totals from the current items and discount.
func (q *Quote) Calculate() pricing.Totals {
	return pricing.Calculate(q.Items, q.Terms.DiscountPct)
}

// Clone deep-copies q.
func (q *Quote) Clone() *Quote {
	out := *q
	if q.Customer.Contact != nil {
		c := *q.Customer.Contact
		out.Customer.Contact = &c
	}
	if q.Items != nil {
		out.Items = make([]LineItem, len(q.Items))
		for i, item := range q.Items {
			out.Items[i] = item.clone()
		}
	}
	if q.Totals != nil {
		t := *q.Totals
		out.Totals = &t
	}
	if q.Archives != nil {
		out.Archives = append([]ArchivedDocument(nil), q.Archives...)
	}
	return &out
}

// Normalize enforces the model invariants in place: quantities of at least
// one, non-negative finite prices and trimmed names.
func (q *Quote) Normalize() {
	q.Customer.Name = strings.TrimSpace(q.Customer.Name)
	q.Control.Revision = strings.TrimSpace(q.Control.Revision)
	for i := range q.Items {
		item := &q.Items[i]
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if item.Product != nil {
			item.Product.SalePrice = nonNegative(item.Product.SalePrice)
			item.Product.CostPrice = nonNegative(item.Product.CostPrice)
		}
		if item.Manual != nil {
			item.Manual.Name = strings.TrimSpace(item.Manual.Name)
			item.Manual.SalePrice = nonNegative(item.Manual.SalePrice)
			if item.Manual.CostPrice != nil {
				c := nonNegative(*item.Manual.CostPrice)
				item.Manual.CostPrice = &c
			}
		}
	}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
