// Package pricing computes unit prices. All arithmetic is decimal;
// results are rounded half-up to two minor-unit places.
package pricing

import (
	"github.com/shopspring/decimal"

	"food-order-system/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ItemUnitPrice is the base price plus the selected options' deltas.
func ItemUnitPrice(item domain.MenuItem, opts []domain.Option) decimal.Decimal {
	p := item.Price
	for _, o := range opts {
		p = p.Add(o.PriceDelta)
	}
	return p.Round(2)
}

// ComboUnitPrice is the sum of constituent unit prices times their
// quantities, discounted by the combo percentage.
func ComboUnitPrice(c domain.Combo) decimal.Decimal {
	sum := decimal.Zero
	for _, ci := range c.Items {
		unit := ItemUnitPrice(ci.MenuItem, ci.Options)
		sum = sum.Add(unit.Mul(decimal.NewFromInt(int64(ci.Quantity))))
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(c.DiscountPercent))).Div(hundred)
	return sum.Mul(factor).Round(2)
}

// LineUnitPrice freezes the price of one cart line unit.
func LineUnitPrice(l domain.CartLine) (decimal.Decimal, error) {
	if err := l.Validate(); err != nil {
		return decimal.Zero, err
	}
	if l.Item != nil {
		return ItemUnitPrice(l.Item.Item, l.Item.Options), nil
	}
	return ComboUnitPrice(l.Combo.Combo), nil
}
