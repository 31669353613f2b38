package domain

import "time"

type CheckoutRequest struct {
	PaymentMethod     string  `json:"payment_method"`
	Note              string  `json:"note,omitempty"`
	DeliveryAddressID int64   `json:"delivery_address_id"`
	ItemLineIDs       []int64 `json:"item_ids,omitempty"`
	ComboLineIDs      []int64 `json:"combo_ids,omitempty"`
	ClearCart         bool    `json:"clear_cart,omitempty"`
}

type OrderLineView struct {
	ID          int64  `json:"id"`
	MenuItemID  *int64 `json:"menu_item_id,omitempty"`
	ComboID     *int64 `json:"combo_id,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Description string `json:"description,omitempty"`
}

type OrderView struct {
	ID                     int64           `json:"id"`
	Status                 string          `json:"status"`
	TotalAmount            string          `json:"total_amount"`
	PaymentMethod          string          `json:"payment_method"`
	PaymentStatus          string          `json:"payment_status"`
	Note                   string          `json:"note,omitempty"`
	AuthorizedAt           *time.Time      `json:"authorized_at,omitempty"`
	AuthorizationExpiresAt *time.Time      `json:"authorization_expires_at,omitempty"`
	CapturedAt             *time.Time      `json:"captured_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	Lines                  []OrderLineView `json:"items"`
}

// ViewOf flattens an order into its serialized form. Money renders as
// strings to keep decimal places exact on the wire.
func ViewOf(o Order) OrderView {
	v := OrderView{
		ID:                     o.ID,
		Status:                 string(o.Status),
		TotalAmount:            o.TotalAmount.StringFixed(2),
		PaymentMethod:          string(o.PaymentMethod),
		PaymentStatus:          string(o.PaymentStatus),
		Note:                   o.Note,
		AuthorizedAt:           o.AuthorizedAt,
		AuthorizationExpiresAt: o.AuthorizationExpiresAt,
		CapturedAt:             o.CapturedAt,
		CreatedAt:              o.CreatedAt,
	}
	for _, l := range o.Lines {
		v.Lines = append(v.Lines, OrderLineView{
			ID:          l.ID,
			MenuItemID:  l.MenuItemID,
			ComboID:     l.ComboID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Description: l.Description,
		})
	}
	return v
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type AuthorizationStatusView struct {
	OrderID       int64  `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	SecondsLeft   int    `json:"seconds_left"`
	CanCancel     bool   `json:"can_cancel"`
}
