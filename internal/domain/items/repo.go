package items

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const itemColumns = `
	id, org_id, code, name, kind,
	qty_current, qty_clean, qty_soiled, qty_in_laundry, qty_damaged, qty_total,
	min_level, reorder_level, max_level, par_level,
	active, created_at
`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	if err := row.Scan(
		&it.ID,
		&it.OrgID,
		&it.Code,
		&it.Name,
		&it.Kind,
		&it.Buckets.Current,
		&it.Buckets.Clean,
		&it.Buckets.Soiled,
		&it.Buckets.InLaundry,
		&it.Buckets.Damaged,
		&it.Total,
		&it.Thresholds.MinLevel,
		&it.Thresholds.ReorderLevel,
		&it.Thresholds.MaxLevel,
		&it.Thresholds.ParLevel,
		&it.Active,
		&it.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &it, nil
}

type CreateSpec struct {
	OrgID      int64
	Code       string
	Name       string
	Kind       Kind
	Thresholds Thresholds
}

// Create registers a new item with all buckets at zero; opening balances
// arrive through the ledger like any other movement.
func (r *Repo) Create(ctx context.Context, spec CreateSpec) (*Item, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO items (org_id, code, name, kind, min_level, reorder_level, max_level, par_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+itemColumns,
		spec.OrgID, spec.Code, spec.Name, spec.Kind,
		spec.Thresholds.MinLevel, spec.Thresholds.ReorderLevel,
		spec.Thresholds.MaxLevel, spec.Thresholds.ParLevel)
	return scanItem(row)
}

func (r *Repo) GetByID(ctx context.Context, orgID, id int64) (*Item, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = $1 AND org_id = $2
	`, id, orgID)
	it, err := scanItem(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return it, err
}

func (r *Repo) List(ctx context.Context, orgID int64, onlyActive bool) ([]Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE org_id = $1`
	if onlyActive {
		q += ` AND active = TRUE`
	}
	q += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateThresholds(ctx context.Context, orgID, id int64, t Thresholds) (*Item, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE items
		SET min_level=$3, reorder_level=$4, max_level=$5, par_level=$6
		WHERE id = $1 AND org_id = $2
		RETURNING `+itemColumns,
		id, orgID, t.MinLevel, t.ReorderLevel, t.MaxLevel, t.ParLevel)
	it, err := scanItem(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return it, err
}

// Deactivate soft-deletes: the item stops accepting transactions but its
// journal stays intact.
func (r *Repo) Deactivate(ctx context.Context, orgID, id int64) (*Item, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE items SET active = FALSE
		WHERE id = $1 AND org_id = $2
		RETURNING `+itemColumns,
		id, orgID)
	it, err := scanItem(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return it, err
}
