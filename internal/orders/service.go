package orders

import (
	"context"
	"fmt"
	"time"

	"food-order-system/internal/common/logger"
	"food-order-system/internal/domain"
)

type Repo interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListActive(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, to domain.OrderStatus, changedBy string) (domain.Order, error)
	CancelAndRestock(ctx context.Context, orderID int64, changedBy string) (domain.Order, bool, error)
}

// gatewayCanceler voids an uncaptured authorization at the gateway.
type gatewayCanceler interface {
	Cancel(ctx context.Context, intentID string) error
}

type Notifier interface {
	Notify(ctx context.Context, order domain.Order, kind domain.NotificationKind)
}

type Service struct {
	repo     Repo
	gateway  gatewayCanceler
	notifier Notifier
	lg       *logger.Logger
	now      func() time.Time
}

func NewService(repo Repo, gateway gatewayCanceler, notifier Notifier, lg *logger.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, notifier: notifier, lg: lg, now: time.Now}
}

func (s *Service) MyOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) WorkOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListActive(ctx)
}

// SelfCancel is the customer's time-boxed cancellation: only while the
// order is still PREPARING and the window has not closed. The gateway
// void happens before the stock-mutating transaction, with no lock held.
func (s *Service) SelfCancel(ctx context.Context, userID, orderID int64) (domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != userID {
		return domain.Order{}, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	if o.Status != domain.StatusPreparing {
		return domain.Order{}, fmt.Errorf("%s order cannot be cancelled by the customer: %w", o.Status, domain.ErrInvalidTransition)
	}
	if s.now().After(o.CancelDeadline()) {
		return domain.Order{}, domain.ErrCancelWindowExpired
	}
	if o.PaymentMethod == domain.PaymentCard && o.PaymentIntentID != "" && o.CapturedAt == nil {
		if err := s.gateway.Cancel(ctx, o.PaymentIntentID); err != nil {
			return domain.Order{}, fmt.Errorf("cancel authorization: %w", err)
		}
	}
	cancelled, done, err := s.repo.CancelAndRestock(ctx, orderID, "customer")
	if err != nil {
		return domain.Order{}, err
	}
	if done {
		s.lg.Info("order_cancelled", map[string]any{"order_id": orderID, "by": "customer"})
		s.notifier.Notify(ctx, cancelled, domain.NotifyOrderCancelled)
	}
	return cancelled, nil
}

// SetStatus is the staff/system transition. Cancellation goes through the
// restock path; everything else must be a forward move.
func (s *Service) SetStatus(ctx context.Context, orderID int64, to domain.OrderStatus, changedBy string) (domain.Order, error) {
	switch to {
	case domain.StatusPreparing, domain.StatusReady, domain.StatusDelivering, domain.StatusCompleted, domain.StatusCancelled:
	default:
		return domain.Order{}, domain.ValidationError{Msg: fmt.Sprintf("unknown status %q", to)}
	}

	if to == domain.StatusCancelled {
		o, err := s.repo.Get(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		if o.Status == domain.StatusCompleted {
			return domain.Order{}, fmt.Errorf("%s -> %s: %w", o.Status, to, domain.ErrInvalidTransition)
		}
		if o.PaymentMethod == domain.PaymentCard && o.PaymentIntentID != "" && o.CapturedAt == nil {
			// The reservation at the gateway expires on its own if this
			// fails; the order must still be cancelled and restocked.
			if err := s.gateway.Cancel(ctx, o.PaymentIntentID); err != nil {
				s.lg.Warn("gateway_cancel_failed", err, map[string]any{"order_id": orderID})
			}
		}
		cancelled, done, err := s.repo.CancelAndRestock(ctx, orderID, changedBy)
		if err != nil {
			return domain.Order{}, err
		}
		if done {
			s.lg.Info("order_cancelled", map[string]any{"order_id": orderID, "by": changedBy})
			s.notifier.Notify(ctx, cancelled, domain.NotifyOrderCancelled)
		}
		return cancelled, nil
	}

	o, err := s.repo.UpdateStatus(ctx, orderID, to, changedBy)
	if err != nil {
		return domain.Order{}, err
	}
	s.lg.Info("order_status_changed", map[string]any{"order_id": orderID, "status": string(to), "by": changedBy})
	if kind, ok := domain.KindForStatus(to); ok {
		s.notifier.Notify(ctx, o, kind)
	}
	return o, nil
}
