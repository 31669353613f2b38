package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	Stock       int
	IsAvailable bool
}

type Option struct {
	ID         int64
	Name       string
	PriceDelta decimal.Decimal
}

// ComboItem is one constituent of a combo: a menu item, how many units of it
// one combo consumes, and any fixed option selections priced into it.
type ComboItem struct {
	MenuItem MenuItem
	Quantity int
	Options  []Option
}

type Combo struct {
	ID              int64
	Name            string
	DiscountPercent int // 0..100
	Items           []ComboItem
}

// ItemSelection is a menu item with the options the customer picked.
type ItemSelection struct {
	Item    MenuItem
	Options []Option
}

type ComboSelection struct {
	Combo Combo
}

// CartLine references exactly one of Item or Combo, never both, never neither.
type CartLine struct {
	ID       int64
	Item     *ItemSelection
	Combo    *ComboSelection
	Quantity int
	Note     string
}

func (l CartLine) Validate() error {
	if (l.Item == nil) == (l.Combo == nil) {
		return ErrLineTarget
	}
	if l.Quantity <= 0 {
		return ValidationError{Msg: "line quantity must be positive"}
	}
	return nil
}

type OrderStatus string

const (
	StatusPreparing  OrderStatus = "PREPARING"
	StatusReady      OrderStatus = "READY"
	StatusDelivering OrderStatus = "DELIVERING"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

var statusRank = map[OrderStatus]int{
	StatusPreparing:  0,
	StatusReady:      1,
	StatusDelivering: 2,
	StatusCompleted:  3,
}

// CanTransition reports whether an order may move from one fulfillment status
// to another. Movement is strictly forward; CANCELLED is reachable from any
// non-terminal status. COMPLETED and CANCELLED are terminal.
func CanTransition(from, to OrderStatus) bool {
	if from == StatusCompleted || from == StatusCancelled {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr > fr
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentAuthorized      PaymentStatus = "authorized"
	PaymentRequiresCapture PaymentStatus = "requires_capture"
	PaymentPaid            PaymentStatus = "paid"
	PaymentCanceled        PaymentStatus = "canceled"
	PaymentRefunded        PaymentStatus = "refunded"
)

// AuthWindow is how long after authorization the customer may still
// self-cancel; past it the charge is eligible for automatic capture.
const AuthWindow = 60 * time.Second

type Order struct {
	ID            int64
	UserID        int64
	AddressID     int64
	Status        OrderStatus
	TotalAmount   decimal.Decimal
	PaymentMethod PaymentMethod
	Note          string

	PaymentStatus          PaymentStatus
	PaymentIntentID        string
	AuthorizedAt           *time.Time
	AuthorizationExpiresAt *time.Time
	CapturedAt             *time.Time
	RestockedAt            *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []OrderLine
}

// CancelDeadline is the instant until which the customer may self-cancel.
// Card orders count from authorization, cash orders from creation.
func (o Order) CancelDeadline() time.Time {
	if o.AuthorizationExpiresAt != nil {
		return *o.AuthorizationExpiresAt
	}
	return o.CreatedAt.Add(AuthWindow)
}

// OrderLine is an immutable snapshot of one purchased unit. Exactly one of
// MenuItemID or ComboID is set; UnitPrice is frozen at checkout (combo
// discount already applied) and is the source of truth for restock.
type OrderLine struct {
	ID          int64
	MenuItemID  *int64
	ComboID     *int64
	Quantity    int
	UnitPrice   decimal.Decimal
	Description string
}

func (l OrderLine) Validate() error {
	if (l.MenuItemID == nil) == (l.ComboID == nil) {
		return ErrLineTarget
	}
	if l.Quantity <= 0 {
		return ValidationError{Msg: "order line quantity must be positive"}
	}
	return nil
}

type NotificationKind string

const (
	NotifyOrderPlaced     NotificationKind = "ORDER_PLACED"
	NotifyOrderReady      NotificationKind = "ORDER_READY"
	NotifyOrderDelivering NotificationKind = "ORDER_DELIVERING"
	NotifyOrderCompleted  NotificationKind = "ORDER_COMPLETED"
	NotifyOrderCancelled  NotificationKind = "ORDER_CANCELLED"
)

// KindForStatus maps a fulfillment status to the notification it triggers.
func KindForStatus(s OrderStatus) (NotificationKind, bool) {
	switch s {
	case StatusReady:
		return NotifyOrderReady, true
	case StatusDelivering:
		return NotifyOrderDelivering, true
	case StatusCompleted:
		return NotifyOrderCompleted, true
	case StatusCancelled:
		return NotifyOrderCancelled, true
	}
	return "", false
}
