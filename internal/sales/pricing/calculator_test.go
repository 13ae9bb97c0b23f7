package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type line struct {
	sale, cost float64
	qty        int
}

func (l line) EffectiveSalePrice() float64 { return l.sale }
func (l line) EffectiveCostPrice() float64 { return l.cost }
func (l line) Qty() int                    { return l.qty }

// ============================================================================
// TOTALS
// ============================================================================

func TestCalculateScenario(t *testing.T) {
	lines := []line{
		{sale: 2546, cost: 1273, qty: 2},
		{sale: 500, qty: 1},
	}
	totals := Calculate(lines, 10)

	assert.InDelta(t, 5592.00, totals.Subtotal, 0.005)
	assert.InDelta(t, 559.20, totals.DiscountAmount, 0.005)
	assert.InDelta(t, 5032.80, totals.FinalSalePrice, 0.005)
	assert.InDelta(t, 2546.00, totals.CostSubtotal, 0.005)
	assert.InDelta(t, 2486.80, totals.GrossMargin, 0.005)
	assert.InDelta(t, 49.41, totals.MarginPct, 0.005)

	rounded := totals.Rounded()
	assert.Equal(t, 559.2, rounded.DiscountAmount)
	assert.Equal(t, 49.41, rounded.MarginPct)
}

func TestCalculateMarginFormulaHolds(t *testing.T) {
	cases := []struct {
		name     string
		lines    []line
		discount float64
	}{
		{"single", []line{{sale: 100, cost: 40, qty: 3}}, 0},
		{"mixed", []line{{sale: 99.99, cost: 10, qty: 7}, {sale: 1.5, cost: 2, qty: 11}}, 12.5},
		{"loss", []line{{sale: 10, cost: 50, qty: 1}}, 5},
		{"full discount", []line{{sale: 10, cost: 5, qty: 1}}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := Calculate(tc.lines, tc.discount)
			var sale, cost float64
			for _, l := range tc.lines {
				sale += l.sale * float64(l.qty)
				cost += l.cost * float64(l.qty)
			}
			final := sale * (1 - tc.discount/100)
			assert.InDelta(t, final-cost, totals.GrossMargin, 1e-9)
			if final > 0 {
				assert.InDelta(t, (final-cost)/final*100, totals.MarginPct, 1e-9)
			} else {
				assert.Zero(t, totals.MarginPct)
			}
		})
	}
}

func TestCalculateEdgeCases(t *testing.T) {
	empty := Calculate([]line{}, 10)
	assert.Equal(t, Totals{}, empty)

	bad := Calculate([]line{{sale: math.NaN(), cost: math.Inf(1), qty: 2}, {sale: 10, qty: -3}}, math.NaN())
	assert.Zero(t, bad.Subtotal)
	assert.Zero(t, bad.CostSubtotal)
	assert.Zero(t, bad.MarginPct)

	over := Calculate([]line{{sale: 10, qty: 1}}, 150)
	assert.Zero(t, over.FinalSalePrice)
	assert.Zero(t, over.MarginPct)
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, 5092.0, LineTotal(line{sale: 2546, qty: 2}))
	assert.Zero(t, LineTotal(line{sale: 2546, qty: 0}))
}

// ============================================================================
// CURRENCY
// ============================================================================

func TestConvertAppliesRateOnce(t *testing.T) {
	totals := Calculate([]line{{sale: 1000, cost: 400, qty: 1}}, 0)
	local := totals.Convert(58.5)

	assert.InDelta(t, 58500.00, local.Subtotal, 1e-9)
	assert.InDelta(t, 58500.00, local.FinalSalePrice, 1e-9)
	assert.InDelta(t, 23400.00, local.CostSubtotal, 1e-9)
	assert.Equal(t, totals.MarginPct, local.MarginPct)
	assert.InDelta(t, 58500.00, ToLocal(1000, 58.5), 1e-9)
}

// ============================================================================
// LANDED COST
// ============================================================================

func TestLandedChain(t *testing.T) {
	landed := Landed(10000, Costing{Transport: 500, DutiesPct: 10, ImportVATPct: 12, BrokerFees: 250})

	assert.InDelta(t, 10500.00, landed.CIF, 1e-9)
	assert.InDelta(t, 1050.00, landed.Duties, 1e-9)
	assert.InDelta(t, 11550.00, landed.CustomsValue, 1e-9)
	assert.InDelta(t, 1386.00, landed.ImportVAT, 1e-9)
	assert.InDelta(t, 13186.00, landed.Total, 1e-9)

	local := landed.Convert(2)
	assert.InDelta(t, 26372.00, local.Total, 1e-9)
}

// ============================================================================
// TAX INVOICE
// ============================================================================

func TestTaxInvoiceDomestic(t *testing.T) {
	b := TaxInvoice(112000, SaleDomestic, 1, 12)
	assert.InDelta(t, 100000.00, Round2(b.VATable), 1e-9)
	assert.InDelta(t, 12000.00, Round2(b.VAT), 1e-9)
	assert.InDelta(t, 1000.00, Round2(b.Withholding), 1e-9)
	assert.InDelta(t, 111000.00, Round2(b.AmountDue), 1e-9)
	assert.Zero(t, b.ZeroRated)
}

func TestTaxInvoiceExport(t *testing.T) {
	b := TaxInvoice(112000, SaleExport, 2, 12)
	assert.Zero(t, b.VATable)
	assert.Zero(t, b.VAT)
	assert.Zero(t, b.Withholding)
	assert.Equal(t, 112000.0, b.ZeroRated)
	assert.Equal(t, 112000.0, b.AmountDue)
}

func TestTaxInvoiceUnknownSaleTypeIsZeroRated(t *testing.T) {
	b := TaxInvoice(500, SaleType(""), 2, 12)
	assert.Equal(t, SaleExport, b.SaleType)
	assert.Equal(t, 500.0, b.ZeroRated)
}

// ============================================================================
// PARSING
// ============================================================================

func TestParseAmount(t *testing.T) {
	cases := map[string]float64{
		"1,250.50": 1250.5,
		" $99 ":    99,
		"₱58,500":  58500,
		"":         0,
		"abc":      0,
		"12x":      0,
		"-5":       -5,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseAmount(in), in)
	}
}

func TestParseQuantity(t *testing.T) {
	assert.Equal(t, 3, ParseQuantity("3"))
	assert.Equal(t, 2, ParseQuantity("2.9"))
	assert.Equal(t, 0, ParseQuantity("-1"))
	assert.Equal(t, 0, ParseQuantity("two"))
	assert.Equal(t, 0, ParseQuantity(""))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, 0.0, Round2(math.NaN()))
	assert.Equal(t, -2.35, Round2(-2.345))
}
