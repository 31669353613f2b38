package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrEmptySelection       = errors.New("nothing to purchase: cart selection is empty")
	ErrAddressNotOwned      = errors.New("delivery address does not belong to this user")
	ErrInvalidPaymentMethod = errors.New("payment method must be cash or card")
	ErrCancelWindowExpired  = errors.New("cancellation window has expired")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrBadSignature         = errors.New("webhook signature verification failed")

	// ErrLineTarget marks a programming error: a line built with both a menu
	// item and a combo, or with neither.
	ErrLineTarget = errors.New("line must reference exactly one of menu item or combo")
)

// ValidationError is a user-facing rejection of the request itself.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// InsufficientStockError names the item that could not cover the requested
// quantity. It aborts the whole reservation, never a part of it.
type InsufficientStockError struct {
	ItemID    int64
	Name      string
	Available int
	Requested int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: %d available, %d requested", e.Name, e.Available, e.Requested)
}

// HTTPStatus maps domain errors onto response codes.
func HTTPStatus(err error) int {
	var ve ValidationError
	var se InsufficientStockError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadSignature):
		return http.StatusBadRequest
	case errors.As(err, &ve), errors.As(err, &se):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptySelection),
		errors.Is(err, ErrAddressNotOwned),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, ErrCancelWindowExpired),
		errors.Is(err, ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
