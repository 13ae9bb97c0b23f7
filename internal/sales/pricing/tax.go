package pricing

// SaleType decides the VAT treatment of a tax invoice.
type SaleType string

const (
	SaleExport   SaleType = "Export"
	SaleDomestic SaleType = "Domestic"
)

// Valid reports whether s is a known sale type.
func (s SaleType) Valid() bool {
	return s == SaleExport || s == SaleDomestic
}

// TaxBreakdown is the VAT section of a tax invoice or official receipt, in
// local currency.
type TaxBreakdown struct {
	SaleType    SaleType `json:"sale_type"`
	TotalSales  float64  `json:"total_sales"`
	VATable     float64  `json:"vatable"`
	ZeroRated   float64  `json:"zero_rated"`
	Exempt      float64  `json:"exempt"`
	VAT         float64  `json:"vat"`
	Withholding float64  `json:"withholding"`
	AmountDue   float64  `json:"amount_due"`
}

// TaxInvoice splits a VAT-inclusive local amount. Domestic sales carry VAT
// at vatRate and withholding on the VATable base; export sales are
// zero-rated with no withholding.
func TaxInvoice(finalLocal float64, sale SaleType, whtPct, vatRate float64) TaxBreakdown {
	finalLocal = finite(finalLocal)
	b := TaxBreakdown{SaleType: sale, TotalSales: finalLocal}
	if sale != SaleDomestic {
		b.SaleType = SaleExport
		b.ZeroRated = finalLocal
		b.AmountDue = finalLocal
		return b
	}
	rate := ClampPct(vatRate) / 100
	b.VATable = finalLocal / (1 + rate)
	b.VAT = b.VATable * rate
	b.Withholding = b.VATable * (ClampPct(whtPct) / 100)
	b.AmountDue = finalLocal - b.Withholding
	return b
}

// Rounded rounds every amount to cents.
func (b TaxBreakdown) Rounded() TaxBreakdown {
	b.TotalSales = Round2(b.TotalSales)
	b.VATable = Round2(b.VATable)
	b.ZeroRated = Round2(b.ZeroRated)
	b.Exempt = Round2(b.Exempt)
	b.VAT = Round2(b.VAT)
	b.Withholding = Round2(b.Withholding)
	b.AmountDue = Round2(b.AmountDue)
	return b
}
