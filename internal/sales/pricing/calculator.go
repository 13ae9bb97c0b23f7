// Package pricing computes quote totals, landed cost and tax-invoice figures.
// Every function is pure; amounts are in the currency of the inputs.
package pricing

import "math"

// Line is anything carrying an effective unit sale price, unit cost and quantity.
type Line interface {
	EffectiveSalePrice() float64
	EffectiveCostPrice() float64
	Qty() int
}

// Totals are the quote-level figures derived from the line items.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	CostSubtotal   float64 `json:"cost_subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalSalePrice float64 `json:"final_sale_price"`
	GrossMargin    float64 `json:"gross_margin"`
	MarginPct      float64 `json:"margin_pct"`
}

// LineTotal is sale price times quantity.
func LineTotal(l Line) float64 {
	return finite(l.EffectiveSalePrice()) * float64(max(l.Qty(), 0))
}

// Calculate sums the lines and applies the quote-level discount percentage.
// MarginPct is 0 when the final sale price is not positive.
func Calculate[L Line](lines []L, discountPct float64) Totals {
	var t Totals
	for _, l := range lines {
		qty := float64(max(l.Qty(), 0))
		t.Subtotal += finite(l.EffectiveSalePrice()) * qty
		t.CostSubtotal += finite(l.EffectiveCostPrice()) * qty
	}
	t.DiscountAmount = t.Subtotal * (ClampPct(discountPct) / 100)
	t.FinalSalePrice = t.Subtotal - t.DiscountAmount
	t.GrossMargin = t.FinalSalePrice - t.CostSubtotal
	if t.FinalSalePrice > 0 {
		t.MarginPct = t.GrossMargin / t.FinalSalePrice * 100
	}
	return t
}

// Convert multiplies every money field by rate. MarginPct is a ratio and is
// left alone. Call it once; renderers format the result without rescaling.
func (t Totals) Convert(rate float64) Totals {
	rate = finite(rate)
	return Totals{
		Subtotal:       t.Subtotal * rate,
		CostSubtotal:   t.CostSubtotal * rate,
		DiscountAmount: t.DiscountAmount * rate,
		FinalSalePrice: t.FinalSalePrice * rate,
		GrossMargin:    t.GrossMargin * rate,
		MarginPct:      t.MarginPct,
	}
}

// Rounded returns t with every field rounded half-up to cents.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:       Round2(t.Subtotal),
		CostSubtotal:   Round2(t.CostSubtotal),
		DiscountAmount: Round2(t.DiscountAmount),
		FinalSalePrice: Round2(t.FinalSalePrice),
		GrossMargin:    Round2(t.GrossMargin),
		MarginPct:      Round2(t.MarginPct),
	}
}

// ToLocal converts a base-currency amount with the forex rate.
func ToLocal(amount, forexRate float64) float64 {
	return finite(amount) * finite(forexRate)
}

// ClampPct bounds a percentage to [0, 100]; NaN becomes 0.
func ClampPct(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
