package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"food-order-system/internal/domain"
	"food-order-system/internal/pricing"
)

// BuildOrder turns the selected cart lines into an unpersisted order with
// frozen prices and descriptions. An empty selection is rejected; a line
// with both or neither target fails with ErrLineTarget.
func BuildOrder(userID, addressID int64, lines []domain.CartLine, method domain.PaymentMethod, note string) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrEmptySelection
	}
	order := domain.Order{
		UserID:        userID,
		AddressID:     addressID,
		Status:        domain.StatusPreparing,
		PaymentMethod: method,
		PaymentStatus: domain.PaymentPending,
		Note:          note,
		TotalAmount:   decimal.Zero,
	}
	for _, l := range lines {
		unit, err := pricing.LineUnitPrice(l)
		if err != nil {
			return domain.Order{}, err
		}
		ol := domain.OrderLine{
			Quantity:    l.Quantity,
			UnitPrice:   unit,
			Description: describe(l),
		}
		if l.Item != nil {
			id := l.Item.Item.ID
			ol.MenuItemID = &id
		} else {
			id := l.Combo.Combo.ID
			ol.ComboID = &id
		}
		if err := ol.Validate(); err != nil {
			return domain.Order{}, err
		}
		order.Lines = append(order.Lines, ol)
		order.TotalAmount = order.TotalAmount.Add(unit.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return order, nil
}

func describe(l domain.CartLine) string {
	if l.Item != nil {
		names := make([]string, 0, len(l.Item.Options))
		for _, o := range l.Item.Options {
			names = append(names, o.Name)
		}
		return strings.Join(names, ", ")
	}
	c := l.Combo.Combo
	parts := make([]string, 0, len(c.Items))
	for _, ci := range c.Items {
		parts = append(parts, fmt.Sprintf("%dx %s", ci.Quantity, ci.MenuItem.Name))
	}
	desc := fmt.Sprintf("Combo %s: %s", c.Name, strings.Join(parts, ", "))
	if c.DiscountPercent > 0 {
		desc += fmt.Sprintf(" (%d%% off)", c.DiscountPercent)
	}
	if l.Note != "" {
		desc += "; " + l.Note
	}
	return desc
}
