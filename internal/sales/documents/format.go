package documents

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/polarline/hvacdesk/internal/sales/pricing"
)

var printer = message.NewPrinter(language.English)

// Currency is a display currency.
type Currency struct {
	Code   string
	Symbol string
}

var (
	USD = Currency{Code: "USD", Symbol: "$"}
	PHP = Currency{Code: "PHP", Symbol: "₱"}
)

// Format renders amount as "$1,234.50". Negative amounts carry the sign before
// the symbol.
func (c Currency) Format(amount float64) string {
	v := pricing.Round2(amount)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + c.Symbol + printer.Sprintf("%.2f", v)
}

// FormatPct renders 12 as "12%" and 12.5 as "12.5%".
func FormatPct(p float64) string {
	return strconv.FormatFloat(pricing.Round2(p), 'f', -1, 64) + "%"
}
