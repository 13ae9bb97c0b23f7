package quotes

import (
	"github.com/google/uuid"

	"github.com/polarline/hvacdesk/internal/masterdata/reference"
)

// ItemKind tags a LineItem.
type ItemKind string

const (
	ItemCatalog ItemKind = "catalog"
	ItemManual  ItemKind = "manual"
)

// ManualEntry is a free-form line typed in by the user.
type ManualEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	SalePrice   float64  `json:"sale_price" validate:"gte=0"`
	CostPrice   *float64 `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
}

// LineItem is either a catalog product snapshot or a manual entry, selected
// by Kind. Prices are in the base currency.
type LineItem struct {
	Kind     ItemKind           `json:"kind" validate:"oneof=catalog manual"`
	Quantity int                `json:"quantity" validate:"gte=1"`
	Product  *reference.Product `json:"product,omitempty" validate:"required_if=Kind catalog"`
	Manual   *ManualEntry       `json:"manual,omitempty" validate:"required_if=Kind manual"`
	Remarks  string             `json:"remarks,omitempty"`
}

// NewCatalogItem snapshots p so later catalog edits do not change saved quotes.
func NewCatalogItem(p reference.Product, qty int) LineItem {
	return LineItem{Kind: ItemCatalog, Quantity: max(qty, 1), Product: &p}
}

// NewManualItem builds a manual line with a generated id. A nil cost means
// the cost was not disclosed and counts as 0.
func NewManualItem(name, description string, salePrice float64, costPrice *float64, qty int) LineItem {
	return LineItem{
		Kind:     ItemManual,
		Quantity: max(qty, 1),
		Manual: &ManualEntry{
			ID:          "manual-" + uuid.NewString(),
			Name:        name,
			Description: description,
			SalePrice:   salePrice,
			CostPrice:   costPrice,
		},
	}
}

// EffectiveSalePrice is the unit sale price used everywhere.
func (l LineItem) EffectiveSalePrice() float64 {
	switch l.Kind {
	case ItemCatalog:
		if l.Product != nil {
			return l.Product.SalePrice
		}
	case ItemManual:
		if l.Manual != nil {
			return l.Manual.SalePrice
		}
	}
	return 0
}

// EffectiveCostPrice is the unit cost; undisclosed manual cost is 0.
func (l LineItem) EffectiveCostPrice() float64 {
	switch l.Kind {
	case ItemCatalog:
		if l.Product != nil {
			return l.Product.CostPrice
		}
	case ItemManual:
		if l.Manual != nil && l.Manual.CostPrice != nil {
			return *l.Manual.CostPrice
		}
	}
	return 0
}

// Qty returns the quantity.
func (l LineItem) Qty() int { return l.Quantity }

// Name is the display name.
func (l LineItem) Name() string {
	switch {
	case l.Kind == ItemCatalog && l.Product != nil:
		return l.Product.Name
	case l.Kind == ItemManual && l.Manual != nil:
		return l.Manual.Name
	}
	return ""
}

// Description is the secondary text printed under the name.
func (l LineItem) Description() string {
	switch {
	case l.Kind == ItemCatalog && l.Product != nil:
		if l.Product.Capacity != "" {
			return l.Product.Category + " · " + l.Product.Capacity
		}
		return l.Product.Category
	case l.Kind == ItemManual && l.Manual != nil:
		return l.Manual.Description
	}
	return ""
}

// Ref is the product id or the manual entry id.
func (l LineItem) Ref() string {
	switch {
	case l.Kind == ItemCatalog && l.Product != nil:
		return l.Product.ID
	case l.Kind == ItemManual && l.Manual != nil:
		return l.Manual.ID
	}
	return ""
}

func (l LineItem) clone() LineItem {
	out := l
	if l.Product != nil {
		p := *l.Product
		out.Product = &p
	}
	if l.Manual != nil {
		m := *l.Manual
		if l.Manual.CostPrice != nil {
			c := *l.Manual.CostPrice
			m.CostPrice = &c
		}
		out.Manual = &m
	}
	return out
}
