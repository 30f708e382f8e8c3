package assignments_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelops/backend/internal/domain/assignments"
	"github.com/hotelops/backend/internal/domain/items"
	"github.com/hotelops/backend/internal/domain/ledger"
	"github.com/hotelops/backend/internal/infra/metrics"
)

func testSetup(t *testing.T) (*pgxpool.Pool, *items.Repo, *ledger.Engine, *assignments.Ledger) {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS=1 and TEST_DATABASE_DSN to run against Postgres")
	}
	dsn := os.Getenv("TEST_DATABASE_DSN")
	require.NotEmpty(t, dsn, "TEST_DATABASE_DSN must point at a scratch database")

	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, goose.Up(sqlDB, "../../../migrations"))
	require.NoError(t, sqlDB.Close())

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	itemsRepo := items.NewRepo(pool)
	engine := ledger.NewEngine(pool, log)
	return pool, itemsRepo, engine, assignments.New(pool, engine)
}

func newStockItem(t *testing.T, repo *items.Repo, orgID int64, opening float64, engine *ledger.Engine) *items.Item {
	t.Helper()
	it, err := repo.Create(context.Background(), items.CreateSpec{
		OrgID: orgID,
		Code:  fmt.Sprintf("stock-%d", time.Now().UnixNano()),
		Name:  "minibar water",
		Kind:  items.KindStock,
	})
	require.NoError(t, err)
	if opening > 0 {
		_, _, err = engine.Apply(context.Background(), ledger.ApplyParams{
			OrgID: orgID, ItemID: it.ID, Type: ledger.TypeReceipt, Quantity: opening, ActorID: 1,
		})
		require.NoError(t, err)
	}
	return it
}

func TestAssignMergesIntoCart(t *testing.T) {
	_, itemsRepo, engine, carts := testSetup(t)
	ctx := context.Background()
	org := time.Now().UnixNano()
	const staffID = 42

	it := newStockItem(t, itemsRepo, org, 10, engine)

	res, err := carts.Assign(ctx, assignments.AssignParams{
		OrgID: org, ItemID: it.ID,
		RecipientType: ledger.RecipientStaff, RecipientID: staffID,
		Quantity: 5, ActorID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Item.Buckets.Current)
	assert.Equal(t, ledger.TypeIssue, res.Entry.Type)
	assert.Equal(t, ledger.RecipientStaff, res.Entry.RecipientType)

	res, err = carts.Assign(ctx, assignments.AssignParams{
		OrgID: org, ItemID: it.ID,
		RecipientType: ledger.RecipientStaff, RecipientID: staffID,
		Quantity: 3, ActorID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Item.Buckets.Current)

	cart, err := carts.CartFor(ctx, org, ledger.RecipientStaff, staffID, nil, nil)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, it.ID, cart[0].ItemID)
	assert.Equal(t, 8.0, cart[0].Quantity, "second assign merges, not duplicates")
	assert.False(t, cart[0].LastAssignedAt.Before(cart[0].FirstAssignedAt))

	// Over-assigning is rejected by the underlying issue.
	_, err = carts.Assign(ctx, assignments.AssignParams{
		OrgID: org, ItemID: it.ID,
		RecipientType: ledger.RecipientStaff, RecipientID: staffID,
		Quantity: 3, ActorID: 1,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
}

func TestAssignUpdatesTransactionCounters(t *testing.T) {
	_, itemsRepo, engine, carts := testSetup(t)
	ctx := context.Background()
	org := time.Now().UnixNano()

	it := newStockItem(t, itemsRepo, org, 4, engine)

	appliedBefore := testutil.ToFloat64(metrics.TransactionsApplied.WithLabelValues(string(ledger.TypeIssue)))
	rejectedBefore := testutil.ToFloat64(metrics.TransactionsRejected.WithLabelValues(string(ledger.TypeIssue), "insufficient_stock"))

	_, err := carts.Assign(ctx, assignments.AssignParams{
		OrgID: org, ItemID: it.ID,
		RecipientType: ledger.RecipientStaff, RecipientID: 7,
		Quantity: 3, ActorID: 1,
	})
	require.NoError(t, err)

	_, err = carts.Assign(ctx, assignments.AssignParams{
		OrgID: org, ItemID: it.ID,
		RecipientType: ledger.RecipientStaff, RecipientID: 7,
		Quantity: 3, ActorID: 1,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	applied := testutil.ToFloat64(metrics.TransactionsApplied.WithLabelValues(string(ledger.TypeIssue)))
	rejected := testutil.ToFloat64(metrics.TransactionsRejected.WithLabelValues(string(ledger.TypeIssue), "insufficient_stock"))
	assert.Equal(t, appliedBefore+1, applied, "assignment-sourced issues count as applied")
	assert.Equal(t, rejectedBefore+1, rejected, "assignment-sourced rejections count too")
}

func TestCartForDateWindow(t *testing.T) {
	_, itemsRepo, engine, carts := testSetup(t)
	ctx := context.Background()
	org := time.Now().UnixNano()
	const staffID = 8

	it := newStockItem(t, itemsRepo, org, 10, engine)
	_, err := carts.Assign(ctx, assignments.AssignParams{
		OrgID: org, ItemID: it.ID,
		RecipientType: ledger.RecipientStaff, RecipientID: staffID,
		Quantity: 4, ActorID: 1,
	})
	require.NoError(t, err)

	now := time.Now()
	hourAgo := now.Add(-time.Hour)
	hourAhead := now.Add(time.Hour)

	cart, err := carts.CartFor(ctx, org, ledger.RecipientStaff, staffID, &hourAgo, &hourAhead)
	require.NoError(t, err)
	assert.Len(t, cart, 1, "window containing first_assigned_at includes the entry")

	cart, err = carts.CartFor(ctx, org, ledger.RecipientStaff, staffID, &hourAhead, nil)
	require.NoError(t, err)
	assert.Empty(t, cart, "window starting after first_assigned_at excludes the entry")

	cart, err = carts.CartFor(ctx, org, ledger.RecipientStaff, staffID, nil, &hourAgo)
	require.NoError(t, err)
	assert.Empty(t, cart, "window ending before first_assigned_at excludes the entry")
}

func TestUnassignForgetsWithoutRestocking(t *testing.T) {
	_, itemsRepo, engine, carts := testSetup(t)
	ctx := context.Background()
	org := time.Now().UnixNano()
	const staffID = 42

	it := newStockItem(t, itemsRepo, org, 10, engine)

	_, err := carts.Assign(ctx, assignments.AssignParams{
		OrgID: org, ItemID: it.ID,
		RecipientType: ledger.RecipientStaff, RecipientID: staffID,
		Quantity: 8, ActorID: 1,
	})
	require.NoError(t, err)

	require.NoError(t, carts.Unassign(ctx, org, ledger.RecipientStaff, staffID, it.ID, 1))

	cart, err := carts.CartFor(ctx, org, ledger.RecipientStaff, staffID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, cart)

	// Deliberate asymmetry: forgetting the association does not put the
	// quantity back on the shelf.
	stored, err := itemsRepo.GetByID(ctx, org, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, stored.Buckets.Current)

	assert.ErrorIs(t, carts.Unassign(ctx, org, ledger.RecipientStaff, staffID, it.ID, 1),
		assignments.ErrNotAssigned)
}

func TestRebuildReconstructsCartFromJournal(t *testing.T) {
	pool, itemsRepo, engine, carts := testSetup(t)
	ctx := context.Background()
	org := time.Now().UnixNano()
	const roomID = 204

	a := newStockItem(t, itemsRepo, org, 50, engine)
	b := newStockItem(t, itemsRepo, org, 50, engine)

	for _, step := range []struct {
		item *items.Item
		qty  float64
	}{{a, 5}, {b, 7}, {a, 2}} {
		_, err := carts.Assign(ctx, assignments.AssignParams{
			OrgID: org, ItemID: step.item.ID,
			RecipientType: ledger.RecipientRoom, RecipientID: roomID,
			Quantity: step.qty, ActorID: 1,
		})
		require.NoError(t, err)
	}
	require.NoError(t, carts.Unassign(ctx, org, ledger.RecipientRoom, roomID, b.ID, 1))

	// Corrupt the cache out-of-band, then rebuild from the journal.
	_, err := pool.Exec(ctx, `
		UPDATE assignments SET quantity = 999
		WHERE recipient_type = 'room' AND recipient_id = $1
	`, roomID)
	require.NoError(t, err)

	cart, err := carts.Rebuild(ctx, org, ledger.RecipientRoom, roomID)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, a.ID, cart[0].ItemID)
	assert.Equal(t, 7.0, cart[0].Quantity, "5 + 2 assigned, b cleared by unassign marker")
}

func TestRebuildRacingAssignLosesNothing(t *testing.T) {
	_, itemsRepo, engine, carts := testSetup(t)
	ctx := context.Background()
	org := time.Now().UnixNano()
	const roomID = 305
	const assigns = 20

	it := newStockItem(t, itemsRepo, org, 100, engine)

	// Assigns and rebuilds race for the same recipient; a rebuild folding
	// a journal snapshot from before a concurrent assign would wipe that
	// assign's cart row.
	var wg sync.WaitGroup
	for i := 0; i < assigns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := carts.Assign(ctx, assignments.AssignParams{
				OrgID: org, ItemID: it.ID,
				RecipientType: ledger.RecipientRoom, RecipientID: roomID,
				Quantity: 1, ActorID: 1,
			})
			assert.NoError(t, err)
		}()
		if i%4 == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := carts.Rebuild(ctx, org, ledger.RecipientRoom, roomID)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	// Without any further rebuild the cache must already match the journal.
	cart, err := carts.CartFor(ctx, org, ledger.RecipientRoom, roomID, nil, nil)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, float64(assigns), cart[0].Quantity)
}
