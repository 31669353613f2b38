package payment

import (
	"context"
	"errors"
	"time"

	"food-order-system/internal/common/logger"
	"food-order-system/internal/common/metrics"
	"food-order-system/internal/domain"
)

// EventStore adds webhook bookkeeping on top of the payment order store.
type EventStore interface {
	OrderStore
	WebhookEventSeen(ctx context.Context, eventID string) (bool, error)
	MarkWebhookEventSeen(ctx context.Context, eventID, eventType string) error
}

type Notifier interface {
	Notify(ctx context.Context, order domain.Order, kind domain.NotificationKind)
}

// Reconciler applies asynchronous gateway events to orders. Every
// transition is an idempotent set, so replayed and out-of-order
// deliveries converge on the same final state.
type Reconciler struct {
	gateway  Gateway
	store    EventStore
	notifier Notifier
	metrics  *metrics.Set
	lg       *logger.Logger
	window   time.Duration
	now      func() time.Time
}

func NewReconciler(gateway Gateway, store EventStore, notifier Notifier, m *metrics.Set, lg *logger.Logger, window time.Duration) *Reconciler {
	if window <= 0 {
		window = domain.AuthWindow
	}
	return &Reconciler{
		gateway: gateway, store: store, notifier: notifier,
		metrics: m, lg: lg, window: window, now: time.Now,
	}
}

// Apply verifies the raw delivery and applies the event. Signature
// failures touch no state. A duplicate event id is acknowledged without
// effect. The event id is recorded only after the event's effect has
// committed: every mutation is an idempotent set, so losing the record
// costs a harmless re-apply on redelivery, while recording first could
// lose the event for good if the apply then failed.
func (r *Reconciler) Apply(ctx context.Context, payload []byte, signature string) error {
	ev, err := r.gateway.VerifyAndParse(payload, signature)
	if err != nil {
		r.metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return err
	}

	seen, err := r.store.WebhookEventSeen(ctx, ev.ID)
	if err != nil {
		return err
	}
	if seen {
		r.metrics.WebhookEvents.WithLabelValues(string(ev.Type), "duplicate").Inc()
		r.lg.Debug("webhook_duplicate", map[string]any{"event_id": ev.ID, "type": string(ev.Type)})
		return nil
	}

	if err := r.apply(ctx, ev); err != nil {
		r.metrics.WebhookEvents.WithLabelValues(string(ev.Type), "error").Inc()
		return err
	}

	// Bookkeeping runs on a context that survives the sender hanging up
	// mid-request; a failure here is logged, not surfaced.
	if err := r.store.MarkWebhookEventSeen(context.WithoutCancel(ctx), ev.ID, string(ev.Type)); err != nil {
		r.lg.Warn("webhook_record_failed", err, map[string]any{"event_id": ev.ID, "type": string(ev.Type)})
	}
	r.metrics.WebhookEvents.WithLabelValues(string(ev.Type), "applied").Inc()
	return nil
}

func (r *Reconciler) apply(ctx context.Context, ev Event) error {
	at := ev.OccurredAt
	if at.IsZero() {
		at = r.now()
	}
	switch ev.Type {
	case EventAuthorized:
		// May arrive after the capture event; MarkAuthorized leaves a
		// paid or canceled order untouched.
		_, err := r.store.MarkAuthorized(ctx, ev.OrderID, ev.IntentID, at, r.window)
		return err

	case EventCaptured:
		_, err := r.store.MarkCaptured(ctx, ev.OrderID, at)
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Capture reported for an order cancelled on our side; the
			// money hold is the gateway's to resolve, order state stays.
			r.lg.Warn("webhook_capture_on_cancelled", err, map[string]any{"order_id": ev.OrderID, "event_id": ev.ID})
			return nil
		}
		return err

	case EventCanceled:
		o, done, err := r.store.CancelAndRestock(ctx, ev.OrderID, "gateway")
		if err != nil {
			return err
		}
		if done {
			r.lg.Info("order_cancelled", map[string]any{"order_id": ev.OrderID, "by": "gateway"})
			r.notifier.Notify(ctx, o, domain.NotifyOrderCancelled)
		}
		return nil

	default:
		r.lg.Debug("webhook_ignored", map[string]any{"event_id": ev.ID, "type": string(ev.Type)})
		return nil
	}
}
