package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelops/backend/internal/domain/items"
	"github.com/hotelops/backend/internal/infra/metrics"
)

// Engine owns the atomic apply path: item buckets and the journal are only
// ever written here, inside one database transaction per call.
type Engine struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewEngine(pool *pgxpool.Pool, log *slog.Logger) *Engine {
	return &Engine{pool: pool, log: log}
}

type ApplyParams struct {
	OrgID         int64
	ItemID        int64
	Type          TxType
	Quantity      float64
	ActorID       int64
	Note          string
	Reference     string
	RecipientType string
	RecipientID   int64
}

// Apply validates and applies one transaction against the item, updating
// its buckets and appending the journal entry as one atomic unit.
func (e *Engine) Apply(ctx context.Context, p ApplyParams) (*items.Item, *Transaction, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, entry, err := e.ApplyTx(ctx, tx, p)
	if err != nil {
		metrics.TransactionsRejected.WithLabelValues(string(p.Type), RejectReason(err)).Inc()
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	metrics.TransactionsApplied.WithLabelValues(string(p.Type)).Inc()
	e.log.Debug("transaction applied",
		"item_id", it.ID, "type", p.Type, "qty", p.Quantity, "total", it.Total)
	return it, entry, nil
}

// ApplyTx runs the apply inside a caller-owned transaction so callers can
// extend the atomic unit (the assignment ledger adds its cart upsert).
// Concurrent applies against the same item serialize on the row lock.
func (e *Engine) ApplyTx(ctx context.Context, tx pgx.Tx, p ApplyParams) (*items.Item, *Transaction, error) {
	var it items.Item
	err := tx.QueryRow(ctx, `
		SELECT id, org_id, code, name, kind,
		       qty_current, qty_clean, qty_soiled, qty_in_laundry, qty_damaged, qty_total,
		       min_level, reorder_level, max_level, par_level,
		       active, created_at
		FROM items
		WHERE id = $1 AND org_id = $2 AND active = TRUE
		FOR UPDATE
	`, p.ItemID, p.OrgID).Scan(
		&it.ID, &it.OrgID, &it.Code, &it.Name, &it.Kind,
		&it.Buckets.Current, &it.Buckets.Clean, &it.Buckets.Soiled,
		&it.Buckets.InLaundry, &it.Buckets.Damaged, &it.Total,
		&it.Thresholds.MinLevel, &it.Thresholds.ReorderLevel,
		&it.Thresholds.MaxLevel, &it.Thresholds.ParLevel,
		&it.Active, &it.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil, ErrItemNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	next, delta, err := NextBalances(it.Kind, it.Buckets, p.Type, p.Quantity)
	if err != nil {
		return nil, nil, err
	}
	total := next.Total(it.Kind)

	if _, err := tx.Exec(ctx, `
		UPDATE items
		SET qty_current=$2, qty_clean=$3, qty_soiled=$4, qty_in_laundry=$5, qty_damaged=$6, qty_total=$7
		WHERE id = $1
	`, it.ID, next.Current, next.Clean, next.Soiled, next.InLaundry, next.Damaged, total); err != nil {
		return nil, nil, err
	}

	entry := Transaction{
		OrgID:         p.OrgID,
		ItemID:        it.ID,
		Type:          p.Type,
		Quantity:      p.Quantity,
		Delta:         delta,
		BalancesAfter: next.Map(it.Kind),
		ActorID:       p.ActorID,
		RecipientType: p.RecipientType,
		RecipientID:   p.RecipientID,
		Note:          p.Note,
		Reference:     p.Reference,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO transactions
			(org_id, item_id, type, quantity, delta, balances_after,
			 actor_id, recipient_type, recipient_id, note, reference)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at
	`, entry.OrgID, entry.ItemID, entry.Type, entry.Quantity, entry.Delta, entry.BalancesAfter,
		entry.ActorID, entry.RecipientType, entry.RecipientID, entry.Note, entry.Reference,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return nil, nil, err
	}

	it.Buckets = next
	it.Total = total
	return &it, &entry, nil
}

// RejectReason maps an apply error onto the metrics reason label. Callers
// that drive ApplyTx inside their own transaction use it to keep the
// transaction counters complete.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, ErrInvalidTransactionType):
		return "invalid_type"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	}
	return "storage"
}
