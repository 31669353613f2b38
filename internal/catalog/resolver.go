// Package catalog holds the combo resolver and the read side of the
// catalog store. Combo stock is never stored: it is derived from
// constituent stock at read time, so it can be briefly stale relative to
// a concurrent reservation, while correctness stays at the item level.
package catalog

import (
	"fmt"

	"food-order-system/internal/domain"
	"food-order-system/internal/stock"
)

// Expand merges a selection of cart lines into per-item requirements.
// Combo lines contribute their constituents multiplied by the line
// quantity; a combo never has stock of its own decremented. A combo
// without constituents has derived stock 0 and is rejected here, since
// it would otherwise reserve nothing and sell for nothing.
func Expand(lines []domain.CartLine) (stock.Requirements, error) {
	req := stock.Requirements{}
	for _, l := range lines {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if l.Item != nil {
			req.Add(l.Item.Item.ID, l.Quantity)
			continue
		}
		if len(l.Combo.Combo.Items) == 0 {
			return nil, domain.ValidationError{
				Msg: fmt.Sprintf("combo %q has no items and cannot be purchased", l.Combo.Combo.Name),
			}
		}
		for _, ci := range l.Combo.Combo.Items {
			req.Add(ci.MenuItem.ID, ci.Quantity*l.Quantity)
		}
	}
	return req, nil
}

// ComboStock derives how many combos the current constituent stock can
// support: min over constituents of floor(stock / per-combo quantity).
// A combo with no items has stock 0.
func ComboStock(c domain.Combo) int {
	if len(c.Items) == 0 {
		return 0
	}
	min := -1
	for _, ci := range c.Items {
		if ci.Quantity <= 0 {
			continue
		}
		n := ci.MenuItem.Stock / ci.Quantity
		if min < 0 || n < min {
			min = n
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

func ComboAvailable(c domain.Combo) bool { return ComboStock(c) > 0 }
