// Package reference holds the static tables the pricing and document code
// reads: product catalog, pricing tiers, tax rates and the seller profile.
// Callers receive a Reference value; nothing here is global mutable state.
package reference

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed defaults.json
var defaultsJSON []byte

// DefaultVATRate applies when a tax table leaves the rate unset.
const DefaultVATRate = 12.0

// Product is one catalog entry, priced in the base currency (USD).
type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Brand     string  `json:"brand,omitempty"`
	Capacity  string  `json:"capacity,omitempty"`
	CostPrice float64 `json:"cost_price"`
	SalePrice float64 `json:"sale_price"`
}

// Tier maps a customer pricing tier to its default discount.
type Tier struct {
	Name        string  `json:"name"`
	DiscountPct float64 `json:"discount_pct"`
	Description string  `json:"description,omitempty"`
}

// WithholdingRate is a creditable withholding-tax preset.
type WithholdingRate struct {
	Code  string  `json:"code"`
	Label string  `json:"label"`
	Rate  float64 `json:"rate"`
}

// TaxTable carries the VAT rate and withholding presets.
type TaxTable struct {
	VATRate     float64           `json:"vat_rate"`
	Withholding []WithholdingRate `json:"withholding"`
}

// BankAccount is printed on pro-forma invoices.
type BankAccount struct {
	Currency      string `json:"currency"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	Branch        string `json:"branch,omitempty"`
	SwiftCode     string `json:"swift_code,omitempty"`
}

// Company is the seller profile shown in every document header.
type Company struct {
	Name     string        `json:"name"`
	Address  string        `json:"address"`
	TIN      string        `json:"tin"`
	Phone    string        `json:"phone"`
	Email    string        `json:"email"`
	Website  string        `json:"website,omitempty"`
	Warranty string        `json:"warranty,omitempty"`
	Banks    []BankAccount `json:"banks"`
}

// Reference bundles all tables.
type Reference struct {
	Company  Company   `json:"company"`
	Products []Product `json:"products"`
	Tiers    []Tier    `json:"tiers"`
	Tax      TaxTable  `json:"tax"`
}

// Default returns the embedded tables.
func Default() (Reference, error) {
	return Parse(defaultsJSON)
}

// MustDefault is Default for wiring and tests.
func MustDefault() Reference {
	ref, err := Default()
	if err != nil {
		panic(err)
	}
	return ref
}

// Parse decodes a reference document.
func Parse(data []byte) (Reference, error) {
	var ref Reference
	if err := json.Unmarshal(data, &ref); err != nil {
		return Reference{}, fmt.Errorf("reference: decode: %w", err)
	}
	return ref, nil
}

// LoadFile reads path and overlays its non-empty tables onto base.
func LoadFile(path string, base Reference) (Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reference{}, fmt.Errorf("reference: read %s: %w", path, err)
	}
	override, err := Parse(data)
	if err != nil {
		return Reference{}, err
	}
	if override.Company.Name != "" {
		base.Company = override.Company
	}
	if len(override.Products) > 0 {
		base.Products = override.Products
	}
	if len(override.Tiers) > 0 {
		base.Tiers = override.Tiers
	}
	if override.Tax.VATRate > 0 || len(override.Tax.Withholding) > 0 {
		base.Tax = override.Tax
	}
	return base, nil
}

// Product looks up a catalog entry by id.
func (r Reference) Product(id string) (Product, bool) {
	for _, p := range r.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Tier looks up a tier by name, ignoring case.
func (r Reference) Tier(name string) (Tier, bool) {
	for _, t := range r.Tiers {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Tier{}, false
}

// Bank returns the account for a currency code.
func (r Reference) Bank(currency string) (BankAccount, bool) {
	for _, b := range r.Company.Banks {
		if strings.EqualFold(b.Currency, currency) {
			return b, true
		}
	}
	return BankAccount{}, false
}

// VATRate returns the configured VAT percentage.
func (r Reference) VATRate() float64 {
	if r.Tax.VATRate <= 0 {
		return DefaultVATRate
	}
	return r.Tax.VATRate
}
