package pricing

// Costing holds the import parameters for the landed-cost chain. Money
// fields are in the base currency.
type Costing struct {
	ForexRate    float64 `json:"forex_rate"`
	Transport    float64 `json:"transport"`
	DutiesPct    float64 `json:"duties_pct"`
	ImportVATPct float64 `json:"import_vat_pct"`
	BrokerFees   float64 `json:"broker_fees"`
}

// LandedCost is the import cost chain built on the final sale price.
type LandedCost struct {
	CIF          float64 `json:"cif"`
	Duties       float64 `json:"duties"`
	CustomsValue float64 `json:"customs_value"`
	ImportVAT    float64 `json:"import_vat"`
	Total        float64 `json:"total"`
}

// Landed computes cif, duties, customs value, import VAT and the total.
func Landed(finalSalePrice float64, c Costing) LandedCost {
	var l LandedCost
	l.CIF = finite(finalSalePrice) + finite(c.Transport)
	l.Duties = l.CIF * (ClampPct(c.DutiesPct) / 100)
	l.CustomsValue = l.CIF + l.Duties
	l.ImportVAT = l.CustomsValue * (ClampPct(c.ImportVATPct) / 100)
	l.Total = l.CustomsValue + l.ImportVAT + finite(c.BrokerFees)
	return l
}

// Convert multiplies every field by rate.
func (l LandedCost) Convert(rate float64) LandedCost {
	rate = finite(rate)
	return LandedCost{
		CIF:          l.CIF * rate,
		Duties:       l.Duties * rate,
		CustomsValue: l.CustomsValue * rate,
		ImportVAT:    l.ImportVAT * rate,
		Total:        l.Total * rate,
	}
}

// Rounded rounds every field to cents.
func (l LandedCost) Rounded() LandedCost {
	return LandedCost{
		CIF:          Round2(l.CIF),
		Duties:       Round2(l.Duties),
		CustomsValue: Round2(l.CustomsValue),
		ImportVAT:    Round2(l.ImportVAT),
		Total:        Round2(l.Total),
	}
}
