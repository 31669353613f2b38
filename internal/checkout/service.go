package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"food-order-system/internal/common/logger"
	"food-order-system/internal/common/metrics"
	"food-order-system/internal/domain"
)

type Store interface {
	CreateOrderFromCart(ctx context.Context, in CheckoutInput) (domain.Order, error)
}

// Authorizer opens a card authorization for a freshly created order.
type Authorizer interface {
	AuthorizeOrder(ctx context.Context, order domain.Order) (domain.Order, error)
}

// Compensator reverses a committed order's stock effects and cancels it.
type Compensator interface {
	CancelAndRestock(ctx context.Context, orderID int64, changedBy string) (domain.Order, bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, order domain.Order, kind domain.NotificationKind)
}

type Service struct {
	store    Store
	auth     Authorizer
	comp     Compensator
	notifier Notifier
	metrics  *metrics.Set
	lg       *logger.Logger
}

func NewService(store Store, auth Authorizer, comp Compensator, notifier Notifier, m *metrics.Set, lg *logger.Logger) *Service {
	return &Service{store: store, auth: auth, comp: comp, notifier: notifier, metrics: m, lg: lg}
}

// Checkout validates the request, runs the checkout transaction and, for
// card orders, opens the payment authorization. A failed authorization
// compensates the already committed order: restock plus cancel, never an
// orphaned stock-consuming order.
func (s *Service) Checkout(ctx context.Context, userID int64, req domain.CheckoutRequest) (domain.Order, error) {
	method := domain.PaymentMethod(req.PaymentMethod)
	if method != domain.PaymentCash && method != domain.PaymentCard {
		s.metrics.Checkouts.WithLabelValues("validation_failed").Inc()
		return domain.Order{}, domain.ErrInvalidPaymentMethod
	}
	if req.DeliveryAddressID <= 0 {
		s.metrics.Checkouts.WithLabelValues("validation_failed").Inc()
		return domain.Order{}, domain.ValidationError{Msg: "delivery_address_id is required"}
	}

	start := time.Now()
	order, err := s.store.CreateOrderFromCart(ctx, CheckoutInput{
		UserID:       userID,
		AddressID:    req.DeliveryAddressID,
		Method:       method,
		Note:         req.Note,
		ItemLineIDs:  req.ItemLineIDs,
		ComboLineIDs: req.ComboLineIDs,
		ClearCart:    req.ClearCart,
	})
	s.metrics.CheckoutTime.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.metrics.Checkouts.WithLabelValues(outcomeOf(err)).Inc()
		var short domain.InsufficientStockError
		if errors.As(err, &short) {
			s.metrics.StockConflicts.Inc()
		}
		return domain.Order{}, err
	}

	if method == domain.PaymentCard {
		authorized, err := s.auth.AuthorizeOrder(ctx, order)
		if err != nil {
			s.lg.Error("authorization_failed", err, map[string]any{"order_id": order.ID})
			if _, _, cerr := s.comp.CancelAndRestock(ctx, order.ID, "checkout"); cerr != nil {
				s.lg.Error("compensation_failed", cerr, map[string]any{"order_id": order.ID})
			}
			s.metrics.Checkouts.WithLabelValues("error").Inc()
			return domain.Order{}, fmt.Errorf("payment authorization failed: %w", err)
		}
		order = authorized
	}

	s.metrics.Checkouts.WithLabelValues("created").Inc()
	s.lg.Info("order_created", map[string]any{
		"order_id": order.ID,
		"user_id":  userID,
		"total":    order.TotalAmount.StringFixed(2),
		"method":   string(method),
	})
	s.notifier.Notify(ctx, order, domain.NotifyOrderPlaced)
	return order, nil
}

func outcomeOf(err error) string {
	var short domain.InsufficientStockError
	var val domain.ValidationError
	switch {
	case errors.As(err, &short):
		return "insufficient_stock"
	case errors.As(err, &val),
		errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, domain.ErrAddressNotOwned),
		errors.Is(err, domain.ErrNotFound):
		return "validation_failed"
	default:
		return "error"
	}
}
