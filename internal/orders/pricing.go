package orders

import (
	"seatflow/internal/seats"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is the price breakdown of an order
type Quote struct {
	Currency        string          `json:"currency"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	ServiceFee      decimal.Decimal `json:"service_fee"`
	Total           decimal.Decimal `json:"total"`
}

// Price sums ticket prices, applies the discount to the subtotal and adds the
// undiscounted service fee. Amounts are rounded to cents.
func Price(tickets []seats.Ticket, discountPercent, feePercent decimal.Decimal) (Quote, error) {
	q := Quote{Subtotal: decimal.Zero}
	for i, t := range tickets {
		if i == 0 {
			q.Currency = t.Currency
		} else if t.Currency != q.Currency {
			return Quote{}, ErrCurrencyMismatch.WithField("seat", t.Key().String())
		}
		q.Subtotal = q.Subtotal.Add(t.Price)
	}

	q.DiscountPercent = clampPercent(discountPercent)
	q.DiscountAmount = q.Subtotal.Mul(q.DiscountPercent).Div(hundred).Round(2)
	q.ServiceFee = q.Subtotal.Mul(clampPercent(feePercent)).Div(hundred).Round(2)
	q.Subtotal = q.Subtotal.Round(2)
	q.Total = q.Subtotal.Sub(q.DiscountAmount).Add(q.ServiceFee).Round(2)
	return q, nil
}

func clampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
