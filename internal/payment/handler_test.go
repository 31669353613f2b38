package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"food-order-system/internal/common/httpx"
	"food-order-system/internal/domain"
)

type fakeMachine struct {
	order   domain.Order
	view    domain.AuthorizationStatusView
	err     error
	trigger string
}

func (f *fakeMachine) Capture(_ context.Context, _ int64, trigger string) (domain.Order, error) {
	f.trigger = trigger
	return f.order, f.err
}

func (f *fakeMachine) Status(context.Context, int64) (domain.AuthorizationStatusView, domain.Order, error) {
	return f.view, f.order, f.err
}

type fakeReconciler struct {
	err       error
	payload   []byte
	signature string
}

func (f *fakeReconciler) Apply(_ context.Context, payload []byte, signature string) error {
	f.payload = payload
	f.signature = signature
	return f.err
}

func newPaymentMux(m machine, r reconciler) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(m, r).Register(mux)
	return mux
}

func TestHandler_Webhook(t *testing.T) {
	t.Parallel()

	rc := &fakeReconciler{}
	mux := newPaymentMux(&fakeMachine{}, rc)

	body := []byte(`{"id":"evt_1","type":"payment.captured","order_id":42}`)
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "cafe")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !bytes.Equal(rc.payload, body) || rc.signature != "cafe" {
		t.Fatalf("reconciler got %q / %q", rc.payload, rc.signature)
	}
}

func TestHandler_Webhook_BadSignature(t *testing.T) {
	t.Parallel()

	mux := newPaymentMux(&fakeMachine{}, &fakeReconciler{err: domain.ErrBadSignature})

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_Capture(t *testing.T) {
	t.Parallel()

	fm := &fakeMachine{order: domain.Order{ID: 42, PaymentStatus: domain.PaymentPaid}}
	mux := newPaymentMux(fm, &fakeReconciler{})

	req := httptest.NewRequest(http.MethodPost, "/orders/42/capture", nil)
	req.Header.Set(httpx.RoleHeader, "staff")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if fm.trigger != "explicit" {
		t.Fatalf("trigger = %q", fm.trigger)
	}
}

func TestHandler_Capture_CustomerForbidden(t *testing.T) {
	t.Parallel()

	mux := newPaymentMux(&fakeMachine{}, &fakeReconciler{})

	req := httptest.NewRequest(http.MethodPost, "/orders/42/capture", nil)
	req.Header.Set(httpx.UserHeader, "7")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_AuthorizationStatus(t *testing.T) {
	t.Parallel()

	fm := &fakeMachine{
		order: domain.Order{ID: 42, UserID: 7},
		view:  domain.AuthorizationStatusView{OrderID: 42, PaymentStatus: "authorized", SecondsLeft: 30, CanCancel: true},
	}
	mux := newPaymentMux(fm, &fakeReconciler{})

	req := httptest.NewRequest(http.MethodGet, "/orders/42/authorization-status", nil)
	req.Header.Set(httpx.UserHeader, "7")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var view domain.AuthorizationStatusView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.SecondsLeft != 30 || !view.CanCancel {
		t.Fatalf("view = %+v", view)
	}
}

// Another customer's order reads as absent, not forbidden.
func TestHandler_AuthorizationStatus_ForeignOrder(t *testing.T) {
	t.Parallel()

	fm := &fakeMachine{order: domain.Order{ID: 42, UserID: 7}}
	mux := newPaymentMux(fm, &fakeReconciler{})

	req := httptest.NewRequest(http.MethodGet, "/orders/42/authorization-status", nil)
	req.Header.Set(httpx.UserHeader, "8")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_AuthorizationStatus_StaffSeesAll(t *testing.T) {
	t.Parallel()

	fm := &fakeMachine{order: domain.Order{ID: 42, UserID: 7}}
	mux := newPaymentMux(fm, &fakeReconciler{})

	req := httptest.NewRequest(http.MethodGet, "/orders/42/authorization-status", nil)
	req.Header.Set(httpx.RoleHeader, "manager")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
