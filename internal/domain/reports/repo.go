package reports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelops/backend/internal/domain/items"
	"github.com/hotelops/backend/internal/domain/ledger"
)

// Repo is the read side: projections over item state and the journal.
// It never writes.
type Repo struct {
	pool  *pgxpool.Pool
	items *items.Repo
}

func NewRepo(pool *pgxpool.Pool, itemsRepo *items.Repo) *Repo {
	return &Repo{pool: pool, items: itemsRepo}
}

type Balance struct {
	ItemID  int64
	Kind    items.Kind
	Buckets map[string]float64
	Total   float64
	Status  items.Status
}

func (r *Repo) Balance(ctx context.Context, orgID, itemID int64) (*Balance, error) {
	it, err := r.items.GetByID(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, ledger.ErrItemNotFound
	}
	return &Balance{
		ItemID:  it.ID,
		Kind:    it.Kind,
		Buckets: it.Buckets.Map(it.Kind),
		Total:   it.Total,
		Status:  it.Status(),
	}, nil
}

// History returns the item's journal, most recent first.
func (r *Repo) History(ctx context.Context, orgID, itemID int64, limit int) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, item_id, type, quantity, delta, balances_after,
		       actor_id, recipient_type, recipient_id, note, reference, created_at
		FROM transactions
		WHERE org_id = $1 AND item_id = $2
		ORDER BY id DESC
		LIMIT $3
	`, orgID, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// Journal returns the item's full journal in application order, for replay
// and reconciliation.
func (r *Repo) Journal(ctx context.Context, orgID, itemID int64) ([]ledger.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, item_id, type, quantity, delta, balances_after,
		       actor_id, recipient_type, recipient_id, note, reference, created_at
		FROM transactions
		WHERE org_id = $1 AND item_id = $2
		ORDER BY id
	`, orgID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		if err := rows.Scan(
			&t.ID, &t.OrgID, &t.ItemID, &t.Type, &t.Quantity, &t.Delta, &t.BalancesAfter,
			&t.ActorID, &t.RecipientType, &t.RecipientID, &t.Note, &t.Reference, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LowStock lists active items classified below ok (low, warning or
// critical), excluding the ones that are fully out.
func (r *Repo) LowStock(ctx context.Context, orgID int64) ([]items.Item, error) {
	return r.filterByStatus(ctx, orgID,
		items.StatusLow, items.StatusWarning, items.StatusCritical)
}

func (r *Repo) OutOfStock(ctx context.Context, orgID int64) ([]items.Item, error) {
	return r.filterByStatus(ctx, orgID, items.StatusOut)
}

func (r *Repo) filterByStatus(ctx context.Context, orgID int64, wanted ...items.Status) ([]items.Item, error) {
	all, err := r.items.List(ctx, orgID, true)
	if err != nil {
		return nil, err
	}
	var out []items.Item
	for _, it := range all {
		st := it.Status()
		for _, w := range wanted {
			if st == w {
				out = append(out, it)
				break
			}
		}
	}
	return out, nil
}
