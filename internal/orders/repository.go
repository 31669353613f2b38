package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"food-order-system/internal/domain"
	"food-order-system/internal/stock"
)

type Repository struct {
	pool   *pgxpool.Pool
	ledger stock.Ledger
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, user_id, delivery_address_id, status, total_amount::text,
payment_method, payment_status, COALESCE(payment_intent_id, ''), note,
authorized_at, authorization_expires_at, captured_at, restocked_at, created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var total, status, method, payStatus string
	err := row.Scan(&o.ID, &o.UserID, &o.AddressID, &status, &total,
		&method, &payStatus, &o.PaymentIntentID, &o.Note,
		&o.AuthorizedAt, &o.AuthorizationExpiresAt, &o.CapturedAt, &o.RestockedAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.TotalAmount, _ = decimal.NewFromString(total)
	return o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadLines(ctx context.Context, q querier, orderID int64) ([]domain.OrderLine, error) {
	rows, err := q.Query(ctx, `
SELECT id, menu_item_id, combo_id, quantity, unit_price::text, COALESCE(description, '')
FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		var price string
		if err := rows.Scan(&l.ID, &l.MenuItemID, &l.ComboID, &l.Quantity, &price, &l.Description); err != nil {
			return nil, err
		}
		l.UnitPrice, _ = decimal.NewFromString(price)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order %d: %w", id, err)
	}
	o.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) listWhere(ctx context.Context, where string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = loadLines(ctx, r.pool, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.listWhere(ctx, `WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListActive returns orders still in fulfillment, oldest first, for staff.
func (r *Repository) ListActive(ctx context.Context) ([]domain.Order, error) {
	return r.listWhere(ctx, `WHERE status NOT IN ('COMPLETED','CANCELLED') ORDER BY created_at ASC`)
}

// UpdateStatus moves an order forward through fulfillment. Cancellation
// does not come through here; it needs the restock path.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, to domain.OrderStatus, changedBy string) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if to == domain.StatusCancelled || !domain.CanTransition(o.Status, to) {
		return domain.Order{}, fmt.Errorf("%s -> %s: %w", o.Status, to, domain.ErrInvalidTransition)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, string(to), id); err != nil {
		return domain.Order{}, fmt.Errorf("update status: %w", err)
	}
	if err := logStatus(ctx, tx, id, to, changedBy); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit status tx: %w", err)
	}
	o.Status = to
	return o, nil
}

// CancelAndRestock cancels an order and returns exactly the stock its
// lines consumed, in one transaction. It is idempotent: a second call on
// an already cancelled order reports done=false and changes nothing, so
// webhook retries and racing cancel paths cannot double-restock.
func (r *Repository) CancelAndRestock(ctx context.Context, orderID int64, changedBy string) (domain.Order, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if o.Status == domain.StatusCancelled {
		return o, false, nil
	}

	o.Lines, err = loadLines(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if o.RestockedAt == nil {
		req, err := requirementsFromLines(ctx, tx, o.Lines)
		if err != nil {
			return domain.Order{}, false, err
		}
		if err := r.ledger.Release(ctx, tx, req); err != nil {
			return domain.Order{}, false, err
		}
	}

	payStatus := domain.PaymentCanceled
	if o.PaymentStatus == domain.PaymentPaid {
		payStatus = domain.PaymentRefunded
	}
	err = tx.QueryRow(ctx, `
UPDATE orders
SET status = 'CANCELLED', payment_status = $2,
    restocked_at = COALESCE(restocked_at, NOW()), updated_at = NOW()
WHERE id = $1
RETURNING restocked_at, updated_at`, orderID, string(payStatus)).Scan(&o.RestockedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("cancel order: %w", err)
	}
	if err := logStatus(ctx, tx, orderID, domain.StatusCancelled, changedBy); err != nil {
		return domain.Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, false, fmt.Errorf("commit cancel tx: %w", err)
	}
	o.Status = domain.StatusCancelled
	o.PaymentStatus = payStatus
	return o, true, nil
}

// MarkAuthorized records a successful gateway authorization. Idempotent:
// timestamps are written once; an order already past authorization (paid
// or canceled) is left untouched.
func (r *Repository) MarkAuthorized(ctx context.Context, orderID int64, intentID string, at time.Time, window time.Duration) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin authorize tx: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.PaymentStatus == domain.PaymentPending || o.PaymentStatus == domain.PaymentAuthorized {
		expires := at.Add(window)
		err = tx.QueryRow(ctx, `
UPDATE orders
SET payment_status = 'authorized',
    payment_intent_id = COALESCE(payment_intent_id, $2),
    authorized_at = COALESCE(authorized_at, $3),
    authorization_expires_at = COALESCE(authorization_expires_at, $4),
    updated_at = NOW()
WHERE id = $1
RETURNING COALESCE(payment_intent_id, ''), authorized_at, authorization_expires_at`,
			orderID, intentID, at, expires,
		).Scan(&o.PaymentIntentID, &o.AuthorizedAt, &o.AuthorizationExpiresAt)
		if err != nil {
			return domain.Order{}, fmt.Errorf("mark authorized: %w", err)
		}
		o.PaymentStatus = domain.PaymentAuthorized
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit authorize tx: %w", err)
	}
	return o, nil
}

// MarkCaptured finalizes payment. captured_at is set exactly once, so a
// replayed capture event cannot move the timestamp.
func (r *Repository) MarkCaptured(ctx context.Context, orderID int64, at time.Time) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin capture tx: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status == domain.StatusCancelled {
		return domain.Order{}, fmt.Errorf("order %d is cancelled: %w", orderID, domain.ErrInvalidTransition)
	}
	err = tx.QueryRow(ctx, `
UPDATE orders
SET payment_status = 'paid',
    captured_at = COALESCE(captured_at, $2),
    updated_at = NOW()
WHERE id = $1
RETURNING captured_at`, orderID, at).Scan(&o.CapturedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("mark captured: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit capture tx: %w", err)
	}
	o.PaymentStatus = domain.PaymentPaid
	return o, nil
}

// WebhookEventSeen reports whether an event id has already been applied.
func (r *Repository) WebhookEventSeen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check webhook event: %w", err)
	}
	return seen, nil
}

// MarkWebhookEventSeen records an applied event id, after the event's
// effect has committed. ON CONFLICT keeps racing deliveries harmless.
func (r *Repository) MarkWebhookEventSeen(ctx context.Context, eventID, eventType string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO webhook_events (event_id, event_type, processed_at)
VALUES ($1, $2, NOW())
ON CONFLICT (event_id) DO NOTHING`, eventID, eventType)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

// DueForCapture lists card orders whose authorization window has passed
// and which are still progressing through fulfillment.
func (r *Repository) DueForCapture(ctx context.Context, now time.Time) ([]domain.Order, error) {
	return r.listWhere(ctx, `
WHERE payment_method = 'card'
  AND payment_status IN ('authorized','requires_capture')
  AND authorization_expires_at <= $1
  AND status IN ('PREPARING','READY','DELIVERING')
ORDER BY authorization_expires_at ASC`, now)
}

func lockOrder(ctx context.Context, tx pgx.Tx, id int64) (domain.Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("lock order %d: %w", id, err)
	}
	return o, nil
}

func logStatus(ctx context.Context, tx pgx.Tx, orderID int64, status domain.OrderStatus, changedBy string) error {
	_, err := tx.Exec(ctx, `
INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
VALUES ($1, $2, $3, NOW())`, orderID, string(status), changedBy)
	if err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}
	return nil
}

// requirementsFromLines rebuilds the stock footprint of an order from its
// lines; combo lines are expanded through the current combo composition.
// Order lines, not the cart, are the source of truth here.
func requirementsFromLines(ctx context.Context, tx pgx.Tx, lines []domain.OrderLine) (stock.Requirements, error) {
	req := stock.Requirements{}
	for _, l := range lines {
		if l.MenuItemID != nil {
			req.Add(*l.MenuItemID, l.Quantity)
			continue
		}
		rows, err := tx.Query(ctx,
			`SELECT menu_item_id, quantity FROM combo_items WHERE combo_id = $1`, *l.ComboID)
		if err != nil {
			return nil, fmt.Errorf("expand combo %d: %w", *l.ComboID, err)
		}
		for rows.Next() {
			var itemID int64
			var qty int
			if err := rows.Scan(&itemID, &qty); err != nil {
				rows.Close()
				return nil, err
			}
			req.Add(itemID, qty*l.Quantity)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return req, nil
}
