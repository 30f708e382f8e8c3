package ledger

import (
	"errors"
	"time"
)

var (
	ErrItemNotFound           = errors.New("item not found")
	ErrInvalidTransactionType = errors.New("transaction type not valid for this item")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientStock      = errors.New("insufficient stock")
)

type TxType string

// Stock (single bucket) transaction types.
const (
	TypeReceipt    TxType = "receipt"
	TypeReturn     TxType = "return"
	TypeIssue      TxType = "issue"
	TypeDiscard    TxType = "discard"
	TypeAdjustment TxType = "adjustment" // quantity is the target absolute value
)

// Linen (four bucket) transaction types.
const (
	TypePurchase       TxType = "purchase"
	TypeIssueClean     TxType = "issue_clean"
	TypeReturnSoiled   TxType = "return_soiled"
	TypeSendLaundry    TxType = "send_laundry"
	TypeReceiveLaundry TxType = "receive_laundry"
	TypeMarkDamaged    TxType = "mark_damaged" // moves clean -> damaged
)

// TypeUnassign is a bucket-neutral marker appended when a recipient's cart
// entry is dropped without restocking. It never changes balances; it exists
// so carts can be rebuilt from the journal alone.
const TypeUnassign TxType = "unassign"

const (
	RecipientRoom  = "room"
	RecipientStaff = "staff"
)

// Transaction is an immutable journal entry. BalancesAfter records every
// bucket of the item as of this entry's position in the log.
type Transaction struct {
	ID            int64
	OrgID         int64
	ItemID        int64
	Type          TxType
	Quantity      float64
	Delta         float64 // signed change to the item's total
	BalancesAfter map[string]float64
	ActorID       int64
	RecipientType string // room|staff, empty when not assignment-sourced
	RecipientID   int64
	Note          string
	Reference     string
	CreatedAt     time.Time
}
