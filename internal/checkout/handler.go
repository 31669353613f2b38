package checkout

import (
	"context"
	"encoding/json"
	"net/http"

	"food-order-system/internal/common/httpx"
	"food-order-system/internal/domain"
)

type checkoutService interface {
	Checkout(ctx context.Context, userID int64, req domain.CheckoutRequest) (domain.Order, error)
}

type Handler struct {
	svc checkoutService
}

func NewHandler(svc checkoutService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /checkout", h.Checkout)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.CurrentUser(r)
	if err != nil {
		httpx.WriteDetail(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	order, err := h.svc.Checkout(r.Context(), userID, req)
	if err != nil {
		httpx.WriteDetail(w, domain.HTTPStatus(err), err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, domain.ViewOf(order))
}
