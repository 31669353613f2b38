package payment

import (
	"context"
	"fmt"
	"time"

	"food-order-system/internal/common/logger"
	"food-order-system/internal/common/metrics"
	"food-order-system/internal/domain"
)

// OrderStore is the slice of the order repository the payment lifecycle
// needs. All its mutations are idempotent sets.
type OrderStore interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	MarkAuthorized(ctx context.Context, orderID int64, intentID string, at time.Time, window time.Duration) (domain.Order, error)
	MarkCaptured(ctx context.Context, orderID int64, at time.Time) (domain.Order, error)
	CancelAndRestock(ctx context.Context, orderID int64, changedBy string) (domain.Order, bool, error)
	DueForCapture(ctx context.Context, now time.Time) ([]domain.Order, error)
}

// Machine drives an order's authorization lifecycle:
// NONE -> AUTHORIZED -> {CAPTURED | CANCELED}. Gateway calls never run
// inside a database transaction.
type Machine struct {
	gateway  Gateway
	store    OrderStore
	metrics  *metrics.Set
	lg       *logger.Logger
	window   time.Duration
	currency string
	now      func() time.Time
}

func NewMachine(gateway Gateway, store OrderStore, m *metrics.Set, lg *logger.Logger, window time.Duration, currency string) *Machine {
	if window <= 0 {
		window = domain.AuthWindow
	}
	return &Machine{
		gateway: gateway, store: store, metrics: m, lg: lg,
		window: window, currency: currency, now: time.Now,
	}
}

// AuthorizeOrder opens an authorize-only charge for the order total and
// records the authorization window on the order.
func (m *Machine) AuthorizeOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	intent, err := m.gateway.Authorize(ctx, order.TotalAmount, m.currency, order.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("gateway authorize: %w", err)
	}
	o, err := m.store.MarkAuthorized(ctx, order.ID, intent.ID, m.now(), m.window)
	if err != nil {
		return domain.Order{}, err
	}
	m.lg.Info("payment_authorized", map[string]any{
		"order_id": order.ID, "intent_id": intent.ID,
		"expires_at": o.AuthorizationExpiresAt,
	})
	return o, nil
}

// Capture converts the authorization into a charge. Permitted any time
// after authorization; capturing a paid order is a no-op.
func (m *Machine) Capture(ctx context.Context, orderID int64, trigger string) (domain.Order, error) {
	o, err := m.store.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	switch {
	case o.PaymentMethod != domain.PaymentCard:
		return domain.Order{}, domain.ValidationError{Msg: "only card orders can be captured"}
	case o.PaymentIntentID == "":
		return domain.Order{}, domain.ValidationError{Msg: "order has no payment authorization"}
	case o.PaymentStatus == domain.PaymentPaid:
		return o, nil
	case o.PaymentStatus == domain.PaymentCanceled, o.PaymentStatus == domain.PaymentRefunded:
		return domain.Order{}, fmt.Errorf("payment is %s: %w", o.PaymentStatus, domain.ErrInvalidTransition)
	}
	if err := m.gateway.Capture(ctx, o.PaymentIntentID); err != nil {
		return domain.Order{}, fmt.Errorf("gateway capture: %w", err)
	}
	captured, err := m.store.MarkCaptured(ctx, orderID, m.now())
	if err != nil {
		return domain.Order{}, err
	}
	m.metrics.Captures.WithLabelValues(trigger).Inc()
	m.lg.Info("payment_captured", map[string]any{"order_id": orderID, "trigger": trigger})
	return captured, nil
}

// Status reports where an order's authorization stands, including how
// much of the self-cancel window remains.
func (m *Machine) Status(ctx context.Context, orderID int64) (domain.AuthorizationStatusView, domain.Order, error) {
	o, err := m.store.Get(ctx, orderID)
	if err != nil {
		return domain.AuthorizationStatusView{}, domain.Order{}, err
	}
	now := m.now()
	deadline := o.CancelDeadline()
	left := int(deadline.Sub(now).Seconds())
	if left < 0 {
		left = 0
	}
	return domain.AuthorizationStatusView{
		OrderID:       o.ID,
		PaymentStatus: string(o.PaymentStatus),
		SecondsLeft:   left,
		CanCancel:     o.Status == domain.StatusPreparing && !now.After(deadline) && o.CapturedAt == nil,
	}, o, nil
}

// RunCaptureSweep periodically captures authorizations whose window has
// passed while the order keeps progressing. Runs until ctx is canceled.
func (m *Machine) RunCaptureSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *Machine) sweepOnce(ctx context.Context) {
	due, err := m.store.DueForCapture(ctx, m.now())
	if err != nil {
		m.lg.Error("capture_sweep_list_failed", err, nil)
		return
	}
	for _, o := range due {
		if _, err := m.Capture(ctx, o.ID, "sweep"); err != nil {
			m.lg.Error("capture_sweep_failed", err, map[string]any{"order_id": o.ID})
		}
	}
}
