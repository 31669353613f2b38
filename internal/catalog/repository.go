package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"food-order-system/internal/domain"
)

// mustDecimal parses money read back as text from NUMERIC columns.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so reads can run
// standalone or inside an enclosing transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct{}

func NewRepository() Repository { return Repository{} }

func (Repository) MenuItem(ctx context.Context, q Querier, id int64) (domain.MenuItem, error) {
	var it domain.MenuItem
	var price string
	err := q.QueryRow(ctx,
		`SELECT id, name, price::text, stock, is_available FROM menu_items WHERE id = $1`,
		id,
	).Scan(&it.ID, &it.Name, &price, &it.Stock, &it.IsAvailable)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MenuItem{}, fmt.Errorf("menu item %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("load menu item %d: %w", id, err)
	}
	it.Price = mustDecimal(price)
	return it, nil
}

func (Repository) Options(ctx context.Context, q Querier, ids []int64) ([]domain.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx,
		`SELECT id, name, price_delta::text FROM options WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	defer rows.Close()

	var opts []domain.Option
	for rows.Next() {
		var o domain.Option
		var delta string
		if err := rows.Scan(&o.ID, &o.Name, &delta); err != nil {
			return nil, err
		}
		o.PriceDelta = mustDecimal(delta)
		opts = append(opts, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(opts) != len(ids) {
		return nil, fmt.Errorf("option: %w", domain.ErrNotFound)
	}
	return opts, nil
}

// Combo loads a combo with its constituents at current stock. Callers that
// need trustworthy availability must call this again after any operation
// that may have changed constituent stock.
func (r Repository) Combo(ctx context.Context, q Querier, id int64) (domain.Combo, error) {
	var c domain.Combo
	err := q.QueryRow(ctx,
		`SELECT id, name, discount_percent FROM combos WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.DiscountPercent)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Combo{}, fmt.Errorf("combo %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Combo{}, fmt.Errorf("load combo %d: %w", id, err)
	}

	rows, err := q.Query(ctx, `
SELECT ci.quantity, mi.id, mi.name, mi.price::text, mi.stock, mi.is_available,
       COALESCE(array_agg(o.id) FILTER (WHERE o.id IS NOT NULL), '{}') AS option_ids
FROM combo_items ci
JOIN menu_items mi ON mi.id = ci.menu_item_id
LEFT JOIN combo_item_options cio ON cio.combo_item_id = ci.id
LEFT JOIN options o ON o.id = cio.option_id
WHERE ci.combo_id = $1
GROUP BY ci.id, ci.quantity, mi.id
ORDER BY ci.id`, id)
	if err != nil {
		return domain.Combo{}, fmt.Errorf("load combo %d items: %w", id, err)
	}
	defer rows.Close()

	type pending struct {
		item      domain.ComboItem
		optionIDs []int64
	}
	var pendings []pending
	for rows.Next() {
		var p pending
		var price string
		if err := rows.Scan(&p.item.Quantity, &p.item.MenuItem.ID, &p.item.MenuItem.Name,
			&price, &p.item.MenuItem.Stock, &p.item.MenuItem.IsAvailable, &p.optionIDs); err != nil {
			return domain.Combo{}, err
		}
		p.item.MenuItem.Price = mustDecimal(price)
		pendings = append(pendings, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Combo{}, err
	}
	for _, p := range pendings {
		opts, err := r.Options(ctx, q, p.optionIDs)
		if err != nil {
			return domain.Combo{}, err
		}
		p.item.Options = opts
		c.Items = append(c.Items, p.item)
	}
	return c, nil
}
