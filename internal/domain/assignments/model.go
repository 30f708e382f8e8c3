package assignments

import (
	"errors"
	"time"
)

// ErrNotAssigned is returned when unassigning an item the recipient does
// not hold.
var ErrNotAssigned = errors.New("item not assigned to recipient")

// CartEntry is one line of a recipient's cart: a quantity of an item
// checked out to a room or a staff member. The cart is a cache over the
// journal; Rebuild recomputes it from scratch.
type CartEntry struct {
	ItemID          int64
	ItemCode        string
	ItemName        string
	Quantity        float64
	FirstAssignedAt time.Time
	LastAssignedAt  time.Time
}
