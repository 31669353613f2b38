package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"food-order-system/internal/catalog"
	"food-order-system/internal/domain"
	"food-order-system/internal/stock"
)

type CheckoutInput struct {
	UserID       int64
	AddressID    int64
	Method       domain.PaymentMethod
	Note         string
	ItemLineIDs  []int64
	ComboLineIDs []int64
	ClearCart    bool
}

type Repository struct {
	pool    *pgxpool.Pool
	ledger  stock.Ledger
	catalog catalog.Repository
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, catalog: catalog.NewRepository()}
}

// CreateOrderFromCart runs the whole checkout in one transaction: validate
// address ownership, resolve the selection, reserve stock, persist the
// order with frozen lines, trim the cart. Any failure rolls everything
// back; there is no partial decrement and no orphan order.
func (r *Repository) CreateOrderFromCart(ctx context.Context, in CheckoutInput) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin checkout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.checkAddress(ctx, tx, in.AddressID, in.UserID); err != nil {
		return domain.Order{}, err
	}

	lines, itemRowIDs, comboRowIDs, err := r.loadSelection(ctx, tx, in)
	if err != nil {
		return domain.Order{}, err
	}

	req, err := catalog.Expand(lines)
	if err != nil {
		return domain.Order{}, err
	}
	if err := r.ledger.Reserve(ctx, tx, req); err != nil {
		var short domain.InsufficientStockError
		if errors.As(err, &short) {
			return domain.Order{}, shortfallError(lines, short)
		}
		return domain.Order{}, err
	}

	order, err := BuildOrder(in.UserID, in.AddressID, lines, in.Method, in.Note)
	if err != nil {
		return domain.Order{}, err
	}
	if err := insertOrder(ctx, tx, &order); err != nil {
		return domain.Order{}, err
	}
	if err := r.trimCart(ctx, tx, in, itemRowIDs, comboRowIDs); err != nil {
		return domain.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit checkout tx: %w", err)
	}
	return order, nil
}

func (r *Repository) checkAddress(ctx context.Context, tx pgx.Tx, addressID, userID int64) error {
	var owner int64
	err := tx.QueryRow(ctx,
		`SELECT user_id FROM delivery_addresses WHERE id = $1`, addressID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("delivery address %d: %w", addressID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load delivery address: %w", err)
	}
	if owner != userID {
		return domain.ErrAddressNotOwned
	}
	return nil
}

type cartItemRow struct {
	id        int64
	itemID    int64
	quantity  int
	optionIDs []int64
}

type cartComboRow struct {
	id       int64
	comboID  int64
	quantity int
	note     string
}

// loadSelection reads the cart, applies the requested subset filter and
// hydrates each surviving line against the catalog, inside the tx so the
// stock values seen here are the ones the ledger will lock.
func (r *Repository) loadSelection(ctx context.Context, tx pgx.Tx, in CheckoutInput) ([]domain.CartLine, []int64, []int64, error) {
	var cartID int64
	err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1`, in.UserID).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil, domain.ErrEmptySelection
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load cart: %w", err)
	}

	itemRows, err := loadCartItems(ctx, tx, cartID)
	if err != nil {
		return nil, nil, nil, err
	}
	comboRows, err := loadCartCombos(ctx, tx, cartID)
	if err != nil {
		return nil, nil, nil, err
	}

	explicit := len(in.ItemLineIDs)+len(in.ComboLineIDs) > 0
	if explicit {
		itemRows, err = filterRows(itemRows, in.ItemLineIDs, func(r cartItemRow) int64 { return r.id })
		if err != nil {
			return nil, nil, nil, err
		}
		comboRows, err = filterRows(comboRows, in.ComboLineIDs, func(r cartComboRow) int64 { return r.id })
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if len(itemRows)+len(comboRows) == 0 {
		return nil, nil, nil, domain.ErrEmptySelection
	}

	var lines []domain.CartLine
	var itemIDs, comboIDs []int64
	for _, row := range itemRows {
		item, err := r.catalog.MenuItem(ctx, tx, row.itemID)
		if err != nil {
			return nil, nil, nil, err
		}
		opts, err := r.catalog.Options(ctx, tx, row.optionIDs)
		if err != nil {
			return nil, nil, nil, err
		}
		lines = append(lines, domain.CartLine{
			ID:       row.id,
			Item:     &domain.ItemSelection{Item: item, Options: opts},
			Quantity: row.quantity,
		})
		itemIDs = append(itemIDs, row.id)
	}
	for _, row := range comboRows {
		combo, err := r.catalog.Combo(ctx, tx, row.comboID)
		if err != nil {
			return nil, nil, nil, err
		}
		lines = append(lines, domain.CartLine{
			ID:       row.id,
			Combo:    &domain.ComboSelection{Combo: combo},
			Quantity: row.quantity,
			Note:     row.note,
		})
		comboIDs = append(comboIDs, row.id)
	}
	return lines, itemIDs, comboIDs, nil
}

func loadCartItems(ctx context.Context, tx pgx.Tx, cartID int64) ([]cartItemRow, error) {
	rows, err := tx.Query(ctx, `
SELECT ci.id, ci.menu_item_id, ci.quantity,
       COALESCE(array_agg(cio.option_id) FILTER (WHERE cio.option_id IS NOT NULL), '{}')
FROM cart_items ci
LEFT JOIN cart_item_options cio ON cio.cart_item_id = ci.id
WHERE ci.cart_id = $1
GROUP BY ci.id
ORDER BY ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	var out []cartItemRow
	for rows.Next() {
		var r cartItemRow
		if err := rows.Scan(&r.id, &r.itemID, &r.quantity, &r.optionIDs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadCartCombos(ctx context.Context, tx pgx.Tx, cartID int64) ([]cartComboRow, error) {
	rows, err := tx.Query(ctx, `
SELECT id, combo_id, quantity, COALESCE(note, '')
FROM cart_combos
WHERE cart_id = $1
ORDER BY id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart combos: %w", err)
	}
	defer rows.Close()

	var out []cartComboRow
	for rows.Next() {
		var r cartComboRow
		if err := rows.Scan(&r.id, &r.comboID, &r.quantity, &r.note); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// filterRows keeps the rows whose id was requested; a requested id that is
// not in the cart is a not-found, not a silent skip.
func filterRows[T any](rows []T, wanted []int64, idOf func(T) int64) ([]T, error) {
	if len(wanted) == 0 {
		return nil, nil
	}
	byID := make(map[int64]T, len(rows))
	for _, r := range rows {
		byID[idOf(r)] = r
	}
	out := make([]T, 0, len(wanted))
	for _, id := range wanted {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("cart line %d: %w", id, domain.ErrNotFound)
		}
		out = append(out, r)
	}
	return out, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	err := tx.QueryRow(ctx, `
INSERT INTO orders (user_id, delivery_address_id, status, total_amount, payment_method, payment_status, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		order.UserID, order.AddressID, string(order.Status), order.TotalAmount.StringFixed(2),
		string(order.PaymentMethod), string(order.PaymentStatus), order.Note,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Lines {
		l := &order.Lines[i]
		err := tx.QueryRow(ctx, `
INSERT INTO order_lines (order_id, menu_item_id, combo_id, quantity, unit_price, description)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
			order.ID, l.MenuItemID, l.ComboID, l.Quantity, l.UnitPrice.StringFixed(2), l.Description,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
VALUES ($1, $2, 'checkout', NOW())`,
		order.ID, string(order.Status))
	if err != nil {
		return fmt.Errorf("insert order status log: %w", err)
	}
	return nil
}

func (r *Repository) trimCart(ctx context.Context, tx pgx.Tx, in CheckoutInput, itemRowIDs, comboRowIDs []int64) error {
	explicit := len(in.ItemLineIDs)+len(in.ComboLineIDs) > 0
	if !explicit && !in.ClearCart {
		return nil
	}
	if len(itemRowIDs) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_item_options WHERE cart_item_id = ANY($1)`, itemRowIDs); err != nil {
			return fmt.Errorf("trim cart item options: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, itemRowIDs); err != nil {
			return fmt.Errorf("trim cart items: %w", err)
		}
	}
	if len(comboRowIDs) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_combos WHERE id = ANY($1)`, comboRowIDs); err != nil {
			return fmt.Errorf("trim cart combos: %w", err)
		}
	}
	return nil
}
