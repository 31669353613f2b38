package checkout

import (
	"fmt"

	"food-order-system/internal/catalog"
	"food-order-system/internal/domain"
)

// shortfallError rewords an item shortfall when the item is only reachable
// through a combo line, so the caller sees the combo they actually put in
// the cart and how many of it the constituents still support.
func shortfallError(lines []domain.CartLine, short domain.InsufficientStockError) error {
	direct := false
	var combo *domain.Combo
	for _, l := range lines {
		if l.Item != nil && l.Item.Item.ID == short.ItemID {
			direct = true
			continue
		}
		if l.Combo == nil {
			continue
		}
		for _, ci := range l.Combo.Combo.Items {
			if ci.MenuItem.ID == short.ItemID {
				c := l.Combo.Combo
				combo = &c
			}
		}
	}
	if direct || combo == nil {
		return short
	}
	return domain.ValidationError{
		Msg: fmt.Sprintf("insufficient stock for combo %q: %d remaining (constituent %q has %d, %d requested)",
			combo.Name, catalog.ComboStock(*combo), short.Name, short.Available, short.Requested),
	}
}
