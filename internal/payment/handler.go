package payment

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"food-order-system/internal/common/httpx"
	"food-order-system/internal/domain"
)

const maxWebhookBody = 1 << 20

type machine interface {
	Capture(ctx context.Context, orderID int64, trigger string) (domain.Order, error)
	Status(ctx context.Context, orderID int64) (domain.AuthorizationStatusView, domain.Order, error)
}

type reconciler interface {
	Apply(ctx context.Context, payload []byte, signature string) error
}

type Handler struct {
	machine    machine
	reconciler reconciler
}

func NewHandler(m machine, r reconciler) *Handler {
	return &Handler{machine: m, reconciler: r}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments/webhook", h.Webhook)
	mux.HandleFunc("POST /orders/{id}/capture", h.Capture)
	mux.HandleFunc("GET /orders/{id}/authorization-status", h.AuthorizationStatus)
}

// Webhook returns non-200 on signature failure or internal error so the
// gateway retries; idempotent re-processing answers 200.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := h.reconciler.Apply(r.Context(), payload, r.Header.Get(SignatureHeader)); err != nil {
		httpx.WriteDetail(w, domain.HTTPStatus(err), err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	if !httpx.IsStaff(r) {
		httpx.WriteDetail(w, http.StatusForbidden, "staff only")
		return
	}
	orderID, ok := pathID(r)
	if !ok {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.machine.Capture(r.Context(), orderID, "explicit")
	if err != nil {
		httpx.WriteDetail(w, domain.HTTPStatus(err), err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, domain.ViewOf(o))
}

func (h *Handler) AuthorizationStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.CurrentUser(r)
	if err != nil && !httpx.IsStaff(r) {
		httpx.WriteDetail(w, http.StatusUnauthorized, err.Error())
		return
	}
	orderID, ok := pathID(r)
	if !ok {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	view, order, err := h.machine.Status(r.Context(), orderID)
	if err != nil {
		httpx.WriteDetail(w, domain.HTTPStatus(err), err.Error())
		return
	}
	if order.UserID != userID && !httpx.IsStaff(r) {
		httpx.WriteDetail(w, http.StatusNotFound, "order not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
