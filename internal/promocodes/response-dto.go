package promocodes

import "github.com/shopspring/decimal"

// Validation is the outcome of an accepted promocode
type Validation struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Eligible        bool            `json:"eligible"`
}
