package domain

import "time"

// NotificationMessage is the wire form published to the notifications
// fan-out exchange. Consumers render user-facing text from it.
type NotificationMessage struct {
	UserID    int64            `json:"user_id"`
	OrderID   int64            `json:"order_id"`
	Kind      NotificationKind `json:"kind"`
	Status    string           `json:"status"`
	Total     string           `json:"total_amount"`
	CreatedAt time.Time        `json:"created_at"`
}
