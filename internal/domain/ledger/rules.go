package ledger

import (
	"fmt"
	"math"

	"github.com/hotelops/backend/internal/domain/items"
)

// NextBalances computes the bucket state after applying one transaction.
// It is pure: callers own locking and persistence. The returned delta is
// the signed change to the item's total (zero for moves between buckets).
func NextBalances(kind items.Kind, b items.Buckets, typ TxType, qty float64) (items.Buckets, float64, error) {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return b, 0, fmt.Errorf("%w: %v", ErrInvalidQuantity, qty)
	}
	// Zero moves nothing; only an absolute adjustment may target zero.
	if qty == 0 && typ != TypeAdjustment {
		return b, 0, fmt.Errorf("%w: quantity must be positive for %s", ErrInvalidQuantity, typ)
	}

	switch kind {
	case items.KindStock:
		return nextStock(b, typ, qty)
	case items.KindLinen:
		return nextLinen(b, typ, qty)
	}
	return b, 0, fmt.Errorf("%w: unknown item kind %q", ErrInvalidTransactionType, kind)
}

func nextStock(b items.Buckets, typ TxType, qty float64) (items.Buckets, float64, error) {
	switch typ {
	case TypeReceipt, TypeReturn:
		b.Current += qty
		return b, qty, nil
	case TypeIssue, TypeDiscard:
		if qty > b.Current {
			return b, 0, fmt.Errorf("%w: have %g, want %g", ErrInsufficientStock, b.Current, qty)
		}
		b.Current -= qty
		return b, -qty, nil
	case TypeAdjustment:
		delta := qty - b.Current
		b.Current = qty
		return b, delta, nil
	}
	return b, 0, fmt.Errorf("%w: %s on a stock item", ErrInvalidTransactionType, typ)
}

func nextLinen(b items.Buckets, typ TxType, qty float64) (items.Buckets, float64, error) {
	switch typ {
	case TypePurchase:
		b.Clean += qty
		return b, qty, nil
	case TypeIssueClean:
		if qty > b.Clean {
			return b, 0, fmt.Errorf("%w: clean %g, want %g", ErrInsufficientStock, b.Clean, qty)
		}
		b.Clean -= qty
		return b, -qty, nil
	case TypeReturnSoiled:
		b.Soiled += qty
		return b, qty, nil
	case TypeSendLaundry:
		if qty > b.Soiled {
			return b, 0, fmt.Errorf("%w: soiled %g, want %g", ErrInsufficientStock, b.Soiled, qty)
		}
		b.Soiled -= qty
		b.InLaundry += qty
		return b, 0, nil
	case TypeReceiveLaundry:
		if qty > b.InLaundry {
			return b, 0, fmt.Errorf("%w: in laundry %g, want %g", ErrInsufficientStock, b.InLaundry, qty)
		}
		b.InLaundry -= qty
		b.Clean += qty
		return b, 0, nil
	case TypeMarkDamaged:
		// Damaged pieces come out of the clean shelf; total is conserved.
		if qty > b.Clean {
			return b, 0, fmt.Errorf("%w: clean %g, want %g", ErrInsufficientStock, b.Clean, qty)
		}
		b.Clean -= qty
		b.Damaged += qty
		return b, 0, nil
	}
	return b, 0, fmt.Errorf("%w: %s on a linen item", ErrInvalidTransactionType, typ)
}

// Replay folds journal entries from empty buckets. A journal written by the
// engine always replays cleanly; an error means the stored log and the
// stored balances can no longer agree.
func Replay(kind items.Kind, entries []Transaction) (items.Buckets, error) {
	var b items.Buckets
	for _, e := range entries {
		if e.Type == TypeUnassign {
			continue
		}
		next, _, err := NextBalances(kind, b, e.Type, e.Quantity)
		if err != nil {
			return items.Buckets{}, fmt.Errorf("replay entry %d (%s): %w", e.ID, e.Type, err)
		}
		b = next
	}
	return b, nil
}
