// Package payment models the external two-phase gateway: the port the
// checkout engine consumes, the typed intent/event value objects parsed
// once at the boundary, and the authorize/capture/cancel lifecycle
// against orders.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"food-order-system/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Webhook-Signature"

type IntentStatus string

const (
	IntentRequiresCapture IntentStatus = "requires_capture"
	IntentSucceeded       IntentStatus = "succeeded"
	IntentCanceled        IntentStatus = "canceled"
)

// Intent is a gateway hold on funds: created by authorize, finished by
// capture or cancel.
type Intent struct {
	ID        string
	OrderID   int64
	Amount    decimal.Decimal
	Currency  string
	Status    IntentStatus
	CreatedAt time.Time
}

type EventType string

const (
	EventAuthorized EventType = "payment.authorized"
	EventCaptured   EventType = "payment.captured"
	EventCanceled   EventType = "payment.canceled"
)

// Event is an asynchronous gateway notification, parsed and verified once
// at the HTTP boundary.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	IntentID   string    `json:"intent_id"`
	OrderID    int64     `json:"order_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Gateway is the contract the checkout engine expects from a payment
// provider. No implementation detail of a concrete provider leaks past it.
type Gateway interface {
	Authorize(ctx context.Context, amount decimal.Decimal, currency string, orderID int64) (Intent, error)
	Capture(ctx context.Context, intentID string) error
	Cancel(ctx context.Context, intentID string) error
	VerifyAndParse(payload []byte, signature string) (Event, error)
}

// Sign computes the webhook signature for a payload. The gateway side of
// the contract; also used by tests and the local simulator.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// LocalGateway is an in-process gateway used in development and tests:
// real intent lifecycle, real signature verification, no network.
type LocalGateway struct {
	secret []byte

	mu      sync.Mutex
	intents map[string]*Intent
}

func NewLocalGateway(secret string) *LocalGateway {
	return &LocalGateway{secret: []byte(secret), intents: make(map[string]*Intent)}
}

func (g *LocalGateway) Authorize(_ context.Context, amount decimal.Decimal, currency string, orderID int64) (Intent, error) {
	if amount.Sign() <= 0 {
		return Intent{}, fmt.Errorf("authorize: amount must be positive, got %s", amount)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	in := Intent{
		ID:        "pi_" + uuid.NewString(),
		OrderID:   orderID,
		Amount:    amount,
		Currency:  currency,
		Status:    IntentRequiresCapture,
		CreatedAt: time.Now().UTC(),
	}
	g.intents[in.ID] = &in
	return in, nil
}

func (g *LocalGateway) Capture(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[intentID]
	if !ok {
		return fmt.Errorf("intent %s: %w", intentID, domain.ErrNotFound)
	}
	if in.Status == IntentCanceled {
		return fmt.Errorf("intent %s is canceled, cannot capture", intentID)
	}
	in.Status = IntentSucceeded
	return nil
}

func (g *LocalGateway) Cancel(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[intentID]
	if !ok {
		return fmt.Errorf("intent %s: %w", intentID, domain.ErrNotFound)
	}
	if in.Status == IntentSucceeded {
		return fmt.Errorf("intent %s already captured, cannot cancel", intentID)
	}
	in.Status = IntentCanceled
	return nil
}

// VerifyAndParse checks the signature before reading anything from the
// payload; a bad signature surfaces ErrBadSignature and touches no state.
func (g *LocalGateway) VerifyAndParse(payload []byte, signature string) (Event, error) {
	want := Sign(g.secret, payload)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return Event{}, domain.ErrBadSignature
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("parse webhook payload: %w", err)
	}
	if ev.ID == "" || ev.Type == "" || ev.OrderID <= 0 {
		return Event{}, fmt.Errorf("webhook payload missing id, type or order_id")
	}
	return ev, nil
}

// IntentStatusOf exposes intent state for the local simulator's
// authorization-status checks and tests.
func (g *LocalGateway) IntentStatusOf(intentID string) (IntentStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[intentID]
	if !ok {
		return "", false
	}
	return in.Status, true
}
