package assignments

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hotelops/backend/internal/domain/items"
	"github.com/hotelops/backend/internal/domain/ledger"
	"github.com/hotelops/backend/internal/infra/metrics"
)

// Ledger checks quantities out of an item's available bucket into
// recipient carts. Every write goes through the engine's atomic apply;
// the cart cache is updated in the same database transaction.
type Ledger struct {
	pool   *pgxpool.Pool
	engine *ledger.Engine
}

func New(pool *pgxpool.Pool, engine *ledger.Engine) *Ledger {
	return &Ledger{pool: pool, engine: engine}
}

type AssignParams struct {
	OrgID         int64
	ItemID        int64
	RecipientType string // room|staff
	RecipientID   int64
	Quantity      float64
	ActorID       int64
	Note          string
	Reference     string
}

type Result struct {
	Item  *items.Item
	Entry *ledger.Transaction
}

func issueType(kind items.Kind) ledger.TxType {
	if kind == items.KindLinen {
		return ledger.TypeIssueClean
	}
	return ledger.TypeIssue
}

func validRecipient(rtype string) error {
	if rtype != ledger.RecipientRoom && rtype != ledger.RecipientStaff {
		return fmt.Errorf("recipient type must be %q or %q, got %q",
			ledger.RecipientRoom, ledger.RecipientStaff, rtype)
	}
	return nil
}

// lockRecipient serializes cart writers for one recipient. Assign,
// Unassign and Rebuild all take this lock, so a rebuild can never fold the
// journal while an assign it has not seen commits a cart row.
func lockRecipient(ctx context.Context, tx pgx.Tx, rtype string, rid int64) error {
	_, err := tx.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2::text, 0))
	`, rtype, rid)
	return err
}

// Assign issues quantity from the item to the recipient and merges it into
// the recipient's cart. An existing cart entry accumulates and keeps its
// first_assigned_at.
func (l *Ledger) Assign(ctx context.Context, p AssignParams) (*Result, error) {
	if err := validRecipient(p.RecipientType); err != nil {
		return nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockRecipient(ctx, tx, p.RecipientType, p.RecipientID); err != nil {
		return nil, err
	}

	var kind items.Kind
	err = tx.QueryRow(ctx, `
		SELECT kind FROM items WHERE id = $1 AND org_id = $2 AND active = TRUE
	`, p.ItemID, p.OrgID).Scan(&kind)
	if err == pgx.ErrNoRows {
		return nil, ledger.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	it, entry, err := l.engine.ApplyTx(ctx, tx, ledger.ApplyParams{
		OrgID:         p.OrgID,
		ItemID:        p.ItemID,
		Type:          issueType(kind),
		Quantity:      p.Quantity,
		ActorID:       p.ActorID,
		Note:          p.Note,
		Reference:     p.Reference,
		RecipientType: p.RecipientType,
		RecipientID:   p.RecipientID,
	})
	if err != nil {
		metrics.TransactionsRejected.WithLabelValues(string(issueType(kind)), ledger.RejectReason(err)).Inc()
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO assignments (org_id, recipient_type, recipient_id, item_id, quantity)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (recipient_type, recipient_id, item_id)
		DO UPDATE SET quantity = assignments.quantity + EXCLUDED.quantity,
		              last_assigned_at = now()
	`, p.OrgID, p.RecipientType, p.RecipientID, p.ItemID, p.Quantity); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	metrics.TransactionsApplied.WithLabelValues(string(entry.Type)).Inc()
	return &Result{Item: it, Entry: entry}, nil
}

// Unassign drops the recipient's cart entry. It deliberately does NOT
// restock the item: putting quantity back on the shelf is an explicit
// return transaction applied by the operator. A bucket-neutral marker is
// appended to the journal so the cart stays reconstructable from the log.
func (l *Ledger) Unassign(ctx context.Context, orgID int64, recipientType string, recipientID, itemID, actorID int64) error {
	if err := validRecipient(recipientType); err != nil {
		return err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockRecipient(ctx, tx, recipientType, recipientID); err != nil {
		return err
	}

	// Lock the item row so the marker's recorded balances cannot race a
	// concurrent apply.
	var it items.Item
	err = tx.QueryRow(ctx, `
		SELECT id, kind, qty_current, qty_clean, qty_soiled, qty_in_laundry, qty_damaged
		FROM items
		WHERE id = $1 AND org_id = $2
		FOR UPDATE
	`, itemID, orgID).Scan(
		&it.ID, &it.Kind,
		&it.Buckets.Current, &it.Buckets.Clean, &it.Buckets.Soiled,
		&it.Buckets.InLaundry, &it.Buckets.Damaged,
	)
	if err == pgx.ErrNoRows {
		return ledger.ErrItemNotFound
	}
	if err != nil {
		return err
	}

	var dropped float64
	err = tx.QueryRow(ctx, `
		DELETE FROM assignments
		WHERE recipient_type = $1 AND recipient_id = $2 AND item_id = $3 AND org_id = $4
		RETURNING quantity
	`, recipientType, recipientID, itemID, orgID).Scan(&dropped)
	if err == pgx.ErrNoRows {
		return ErrNotAssigned
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions
			(org_id, item_id, type, quantity, delta, balances_after,
			 actor_id, recipient_type, recipient_id, note, reference)
		VALUES ($1,$2,$3,$4,0,$5,$6,$7,$8,'','')
	`, orgID, itemID, ledger.TypeUnassign, dropped, it.Buckets.Map(it.Kind),
		actorID, recipientType, recipientID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CartFor lists the recipient's cart, optionally limited to entries first
// assigned within [from, to].
func (l *Ledger) CartFor(ctx context.Context, orgID int64, recipientType string, recipientID int64, from, to *time.Time) ([]CartEntry, error) {
	if err := validRecipient(recipientType); err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, `
		SELECT a.item_id, i.code, i.name, a.quantity, a.first_assigned_at, a.last_assigned_at
		FROM assignments a
		JOIN items i ON i.id = a.item_id
		WHERE a.org_id = $1 AND a.recipient_type = $2 AND a.recipient_id = $3
		  AND ($4::timestamptz IS NULL OR a.first_assigned_at >= $4)
		  AND ($5::timestamptz IS NULL OR a.first_assigned_at <= $5)
		ORDER BY i.code
	`, orgID, recipientType, recipientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CartEntry
	for rows.Next() {
		var e CartEntry
		if err := rows.Scan(&e.ItemID, &e.ItemCode, &e.ItemName, &e.Quantity,
			&e.FirstAssignedAt, &e.LastAssignedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Rebuild recomputes the recipient's cart from the journal and overwrites
// the cache: issue-class entries accumulate, unassign markers clear.
func (l *Ledger) Rebuild(ctx context.Context, orgID int64, recipientType string, recipientID int64) ([]CartEntry, error) {
	if err := validRecipient(recipientType); err != nil {
		return nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The journal must be read under the same lock that assigns take:
	// folding a snapshot from before the lock could wipe a cart row whose
	// journal entry was never seen.
	if err := lockRecipient(ctx, tx, recipientType, recipientID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT item_id, type, quantity, created_at
		FROM transactions
		WHERE org_id = $1 AND recipient_type = $2 AND recipient_id = $3
		ORDER BY id
	`, orgID, recipientType, recipientID)
	if err != nil {
		return nil, err
	}

	carts := map[int64]*CartEntry{}
	for rows.Next() {
		var (
			itemID    int64
			typ       ledger.TxType
			qty       float64
			createdAt time.Time
		)
		if err := rows.Scan(&itemID, &typ, &qty, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		switch typ {
		case ledger.TypeIssue, ledger.TypeIssueClean:
			e, ok := carts[itemID]
			if !ok {
				e = &CartEntry{ItemID: itemID, FirstAssignedAt: createdAt}
				carts[itemID] = e
			}
			e.Quantity += qty
			e.LastAssignedAt = createdAt
		case ledger.TypeUnassign:
			delete(carts, itemID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM assignments
		WHERE org_id = $1 AND recipient_type = $2 AND recipient_id = $3
	`, orgID, recipientType, recipientID); err != nil {
		return nil, err
	}
	for _, e := range carts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO assignments
				(org_id, recipient_type, recipient_id, item_id, quantity, first_assigned_at, last_assigned_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, orgID, recipientType, recipientID, e.ItemID, e.Quantity,
			e.FirstAssignedAt, e.LastAssignedAt); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return l.CartFor(ctx, orgID, recipientType, recipientID, nil, nil)
}
