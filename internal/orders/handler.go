package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"food-order-system/internal/common/httpx"
	"food-order-system/internal/domain"
)

type orderService interface {
	MyOrders(ctx context.Context, userID int64) ([]domain.Order, error)
	WorkOrders(ctx context.Context) ([]domain.Order, error)
	SelfCancel(ctx context.Context, userID, orderID int64) (domain.Order, error)
	SetStatus(ctx context.Context, orderID int64, to domain.OrderStatus, changedBy string) (domain.Order, error)
}

type Handler struct {
	svc orderService
}

func NewHandler(svc orderService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders/my", h.MyOrders)
	mux.HandleFunc("GET /orders/work", h.WorkOrders)
	mux.HandleFunc("PATCH /orders/{id}/cancel", h.Cancel)
	mux.HandleFunc("PATCH /orders/{id}/status", h.SetStatus)
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.CurrentUser(r)
	if err != nil {
		httpx.WriteDetail(w, http.StatusUnauthorized, err.Error())
		return
	}
	list, err := h.svc.MyOrders(r.Context(), userID)
	if err != nil {
		httpx.WriteDetail(w, domain.HTTPStatus(err), err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views(list))
}

func (h *Handler) WorkOrders(w http.ResponseWriter, r *http.Request) {
	if !httpx.IsStaff(r) {
		httpx.WriteDetail(w, http.StatusForbidden, "staff only")
		return
	}
	list, err := h.svc.WorkOrders(r.Context())
	if err != nil {
		httpx.WriteDetail(w, domain.HTTPStatus(err), err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views(list))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.CurrentUser(r)
	if err != nil {
		httpx.WriteDetail(w, http.StatusUnauthorized, err.Error())
		return
	}
	orderID, ok := pathID(r)
	if !ok {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.svc.SelfCancel(r.Context(), userID, orderID)
	if err != nil {
		httpx.WriteDetail(w, domain.HTTPStatus(err), err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, domain.ViewOf(o))
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !httpx.IsStaff(r) {
		httpx.WriteDetail(w, http.StatusForbidden, "staff only")
		return
	}
	orderID, ok := pathID(r)
	if !ok {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req domain.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	o, err := h.svc.SetStatus(r.Context(), orderID, domain.OrderStatus(req.Status), "staff")
	if err != nil {
		httpx.WriteDetail(w, domain.HTTPStatus(err), err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, domain.ViewOf(o))
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func views(list []domain.Order) []domain.OrderView {
	out := make([]domain.OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, domain.ViewOf(o))
	}
	return out
}
