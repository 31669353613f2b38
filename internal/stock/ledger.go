// Package stock implements the per-item stock ledger. All mutations run
// inside a caller-owned transaction and lock item rows in ascending id
// order, so two transactions touching overlapping items always queue
// instead of deadlocking.
package stock

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"food-order-system/internal/domain"
)

// Requirements maps menu item id to the quantity being reserved or released.
type Requirements map[int64]int

func (r Requirements) Add(itemID int64, qty int) {
	r[itemID] += qty
}

// SortedIDs returns the item ids in ascending order, the global lock order.
func (r Requirements) SortedIDs() []int64 {
	ids := make([]int64, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type Ledger struct{}

type lockedItem struct {
	id        int64
	name      string
	stock     int
	available bool
}

// Reserve locks every referenced item row and decrements stock, or fails
// without touching anything. A single short item aborts the whole call;
// the caller's transaction rollback undoes any acquired locks.
func (Ledger) Reserve(ctx context.Context, tx pgx.Tx, req Requirements) error {
	if len(req) == 0 {
		return nil
	}
	items, err := lockItems(ctx, tx, req)
	if err != nil {
		return err
	}
	for _, it := range items {
		want := req[it.id]
		if !it.available || it.stock < want {
			return domain.InsufficientStockError{
				ItemID:    it.id,
				Name:      it.name,
				Available: it.stock,
				Requested: want,
			}
		}
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		left := it.stock - req[it.id]
		batch.Queue(
			`UPDATE menu_items SET stock = $1, is_available = $2 WHERE id = $3`,
			left, left > 0, it.id,
		)
	}
	return flush(ctx, tx, batch)
}

// Release is the exact inverse of Reserve: it increments stock and makes
// items available again once stock is positive. Requirements must come
// from order lines, not from the (possibly already emptied) cart.
func (Ledger) Release(ctx context.Context, tx pgx.Tx, req Requirements) error {
	if len(req) == 0 {
		return nil
	}
	items, err := lockItems(ctx, tx, req)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		left := it.stock + req[it.id]
		batch.Queue(
			`UPDATE menu_items SET stock = $1, is_available = $2 WHERE id = $3`,
			left, left > 0, it.id,
		)
	}
	return flush(ctx, tx, batch)
}

func lockItems(ctx context.Context, tx pgx.Tx, req Requirements) ([]lockedItem, error) {
	ids := req.SortedIDs()
	rows, err := tx.Query(ctx,
		`SELECT id, name, stock, is_available FROM menu_items WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lock menu items: %w", err)
	}
	defer rows.Close()

	items := make([]lockedItem, 0, len(ids))
	for rows.Next() {
		var it lockedItem
		if err := rows.Scan(&it.id, &it.name, &it.stock, &it.available); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) != len(ids) {
		return nil, fmt.Errorf("menu item: %w", domain.ErrNotFound)
	}
	return items, nil
}

func flush(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
	}
	return nil
}
