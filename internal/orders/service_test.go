package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"food-order-system/internal/common/logger"
	"food-order-system/internal/domain"
)

type fakeRepo struct {
	orders map[int64]domain.Order

	cancelled  []int64
	cancelBy   []string
	updated    []domain.OrderStatus
	cancelErr  error
	alreadyOut bool
}

func newFakeRepo(orders ...domain.Order) *fakeRepo {
	f := &fakeRepo{orders: map[int64]domain.Order{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeRepo) Get(_ context.Context, id int64) (domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListActive(context.Context) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if o.Status != domain.StatusCompleted && o.Status != domain.StatusCancelled {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, to domain.OrderStatus, _ string) (domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if !domain.CanTransition(o.Status, to) {
		return domain.Order{}, domain.ErrInvalidTransition
	}
	o.Status = to
	f.orders[id] = o
	f.updated = append(f.updated, to)
	return o, nil
}

func (f *fakeRepo) CancelAndRestock(_ context.Context, orderID int64, changedBy string) (domain.Order, bool, error) {
	if f.cancelErr != nil {
		return domain.Order{}, false, f.cancelErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, false, domain.ErrNotFound
	}
	if f.alreadyOut || o.Status == domain.StatusCancelled {
		return o, false, nil
	}
	o.Status = domain.StatusCancelled
	o.PaymentStatus = domain.PaymentCanceled
	f.orders[orderID] = o
	f.cancelled = append(f.cancelled, orderID)
	f.cancelBy = append(f.cancelBy, changedBy)
	return o, true, nil
}

type fakeGateway struct {
	cancelled []string
	err       error
}

func (f *fakeGateway) Cancel(_ context.Context, intentID string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, intentID)
	return nil
}

type fakeNotifier struct {
	kinds []domain.NotificationKind
}

func (f *fakeNotifier) Notify(_ context.Context, _ domain.Order, kind domain.NotificationKind) {
	f.kinds = append(f.kinds, kind)
}

func newTestService(repo Repo, gw gatewayCanceler, n Notifier, now time.Time) *Service {
	s := NewService(repo, gw, n, logger.New("test"))
	s.now = func() time.Time { return now }
	return s
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func cashOrder(id, userID int64) domain.Order {
	return domain.Order{
		ID:            id,
		UserID:        userID,
		Status:        domain.StatusPreparing,
		PaymentMethod: domain.PaymentCash,
		CreatedAt:     baseTime,
	}
}

func TestSelfCancel_WithinWindow(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(cashOrder(1, 7))
	gw := &fakeGateway{}
	notif := &fakeNotifier{}
	svc := newTestService(repo, gw, notif, baseTime.Add(59*time.Second))

	o, err := svc.SelfCancel(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != domain.StatusCancelled {
		t.Fatalf("status = %s", o.Status)
	}
	if len(repo.cancelled) != 1 || repo.cancelBy[0] != "customer" {
		t.Fatalf("restock calls = %v by %v", repo.cancelled, repo.cancelBy)
	}
	if len(gw.cancelled) != 0 {
		t.Fatal("cash order must not touch the gateway")
	}
	if len(notif.kinds) != 1 || notif.kinds[0] != domain.NotifyOrderCancelled {
		t.Fatalf("notifications = %v", notif.kinds)
	}
}

func TestSelfCancel_WindowBoundary(t *testing.T) {
	t.Parallel()

	// Exactly at the deadline still cancels; one second past does not.
	repo := newFakeRepo(cashOrder(1, 7))
	svc := newTestService(repo, &fakeGateway{}, &fakeNotifier{}, baseTime.Add(domain.AuthWindow))
	if _, err := svc.SelfCancel(context.Background(), 7, 1); err != nil {
		t.Fatalf("at deadline: %v", err)
	}

	repo = newFakeRepo(cashOrder(1, 7))
	svc = newTestService(repo, &fakeGateway{}, &fakeNotifier{}, baseTime.Add(domain.AuthWindow+time.Second))
	_, err := svc.SelfCancel(context.Background(), 7, 1)
	if !errors.Is(err, domain.ErrCancelWindowExpired) {
		t.Fatalf("past deadline: got %v", err)
	}
	if len(repo.cancelled) != 0 {
		t.Fatal("expired cancel must not restock")
	}
}

func TestSelfCancel_CardWindowFollowsAuthorization(t *testing.T) {
	t.Parallel()

	// Authorization at created+30s pushes the deadline to created+90s.
	o := cashOrder(1, 7)
	o.PaymentMethod = domain.PaymentCard
	o.PaymentIntentID = "pi_abc"
	exp := baseTime.Add(90 * time.Second)
	o.AuthorizationExpiresAt = &exp

	repo := newFakeRepo(o)
	gw := &fakeGateway{}
	svc := newTestService(repo, gw, &fakeNotifier{}, baseTime.Add(85*time.Second))

	if _, err := svc.SelfCancel(context.Background(), 7, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "pi_abc" {
		t.Fatalf("gateway cancels = %v", gw.cancelled)
	}
}

func TestSelfCancel_GatewayFailureAborts(t *testing.T) {
	t.Parallel()

	o := cashOrder(1, 7)
	o.PaymentMethod = domain.PaymentCard
	o.PaymentIntentID = "pi_abc"

	repo := newFakeRepo(o)
	gw := &fakeGateway{err: errors.New("gateway unreachable")}
	svc := newTestService(repo, gw, &fakeNotifier{}, baseTime)

	_, err := svc.SelfCancel(context.Background(), 7, 1)
	if err == nil || !errors.Is(err, gw.err) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if len(repo.cancelled) != 0 {
		t.Fatal("restock must not run when the gateway void fails")
	}
}

func TestSelfCancel_OwnershipAndState(t *testing.T) {
	t.Parallel()

	ready := cashOrder(2, 7)
	ready.Status = domain.StatusReady

	repo := newFakeRepo(cashOrder(1, 7), ready)
	svc := newTestService(repo, &fakeGateway{}, &fakeNotifier{}, baseTime)

	// Someone else's order reads as absent, not forbidden.
	_, err := svc.SelfCancel(context.Background(), 8, 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign order: got %v", err)
	}

	_, err = svc.SelfCancel(context.Background(), 7, 2)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("READY order: got %v", err)
	}
}

func TestSetStatus_ForwardMove(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(cashOrder(1, 7))
	notif := &fakeNotifier{}
	svc := newTestService(repo, &fakeGateway{}, notif, baseTime)

	o, err := svc.SetStatus(context.Background(), 1, domain.StatusReady, "chef_anna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != domain.StatusReady {
		t.Fatalf("status = %s", o.Status)
	}
	if len(notif.kinds) != 1 || notif.kinds[0] != domain.NotifyOrderReady {
		t.Fatalf("notifications = %v", notif.kinds)
	}
}

func TestSetStatus_BackwardMoveRejected(t *testing.T) {
	t.Parallel()

	o := cashOrder(1, 7)
	o.Status = domain.StatusDelivering
	repo := newFakeRepo(o)
	svc := newTestService(repo, &fakeGateway{}, &fakeNotifier{}, baseTime)

	_, err := svc.SetStatus(context.Background(), 1, domain.StatusReady, "chef_anna")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetStatus_UnknownStatus(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo(), &fakeGateway{}, &fakeNotifier{}, baseTime)
	_, err := svc.SetStatus(context.Background(), 1, domain.OrderStatus("COOKING"), "chef_anna")
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSetStatus_CancelRestocksAndVoids(t *testing.T) {
	t.Parallel()

	o := cashOrder(1, 7)
	o.Status = domain.StatusReady
	o.PaymentMethod = domain.PaymentCard
	o.PaymentIntentID = "pi_abc"

	repo := newFakeRepo(o)
	gw := &fakeGateway{}
	notif := &fakeNotifier{}
	svc := newTestService(repo, gw, notif, baseTime)

	got, err := svc.SetStatus(context.Background(), 1, domain.StatusCancelled, "manager_bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if len(gw.cancelled) != 1 {
		t.Fatalf("gateway cancels = %v", gw.cancelled)
	}
	if len(repo.cancelBy) != 1 || repo.cancelBy[0] != "manager_bob" {
		t.Fatalf("changed_by = %v", repo.cancelBy)
	}
	if len(notif.kinds) != 1 || notif.kinds[0] != domain.NotifyOrderCancelled {
		t.Fatalf("notifications = %v", notif.kinds)
	}
}

// A gateway void failure does not block a staff cancellation: the hold
// expires at the gateway on its own.
func TestSetStatus_CancelSurvivesGatewayFailure(t *testing.T) {
	t.Parallel()

	o := cashOrder(1, 7)
	o.PaymentMethod = domain.PaymentCard
	o.PaymentIntentID = "pi_abc"

	repo := newFakeRepo(o)
	gw := &fakeGateway{err: errors.New("gateway unreachable")}
	svc := newTestService(repo, gw, &fakeNotifier{}, baseTime)

	got, err := svc.SetStatus(context.Background(), 1, domain.StatusCancelled, "staff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if len(repo.cancelled) != 1 {
		t.Fatal("order must still restock")
	}
}

func TestSetStatus_CancelCompletedRejected(t *testing.T) {
	t.Parallel()

	o := cashOrder(1, 7)
	o.Status = domain.StatusCompleted
	repo := newFakeRepo(o)
	svc := newTestService(repo, &fakeGateway{}, &fakeNotifier{}, baseTime)

	_, err := svc.SetStatus(context.Background(), 1, domain.StatusCancelled, "staff")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetStatus_CancelIdempotent(t *testing.T) {
	t.Parallel()

	o := cashOrder(1, 7)
	o.Status = domain.StatusCancelled
	repo := newFakeRepo(o)
	notif := &fakeNotifier{}
	svc := newTestService(repo, &fakeGateway{}, notif, baseTime)

	got, err := svc.SetStatus(context.Background(), 1, domain.StatusCancelled, "staff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if len(repo.cancelled) != 0 || len(notif.kinds) != 0 {
		t.Fatal("repeat cancel must be a no-op")
	}
}
