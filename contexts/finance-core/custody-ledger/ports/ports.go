package ports

import (
	"context"
	"time"
)

type EntryKind string

const (
	EntryKindDeposit  EntryKind = "deposit"
	EntryKindTransfer EntryKind = "transfer"
)

// Amounts are integer minor currency units.
type Account struct {
	AccountID string
	Balance   int64
	UpdatedAt time.Time
}

type Entry struct {
	EntryID     string
	Kind        EntryKind
	Reference   string
	FromAccount string
	ToAccount   string
	Amount      int64
	CreatedAt   time.Time
}

type DepositInput struct {
	AccountID string
	Amount    int64
	Reference string
}

type TransferInput struct {
	From      string
	To        string
	Amount    int64
	Reference string
}

// Repository applies ledger movements atomically. Both movement methods
// report replayed=true when the reference was already applied with the same
// payload and return ErrReferenceConflict when it was applied with another.
type Repository interface {
	Deposit(ctx context.Context, entryID string, input DepositInput, now time.Time) (Entry, bool, error)
	Transfer(ctx context.Context, entryID string, input TransferInput, now time.Time) (Entry, bool, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]Entry, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
