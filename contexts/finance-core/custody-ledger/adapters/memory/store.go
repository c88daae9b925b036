package memory

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	domainerrors "commonpool/contexts/finance-core/custody-ledger/domain/errors"
	"commonpool/contexts/finance-core/custody-ledger/ports"

	"github.com/google/uuid"
)

// Store is the in-process ledger. Its single mutex is a leaf lock: callers
// may hold their own record guards while transferring, never the reverse.
type Store struct {
	mu sync.Mutex

	accounts    map[string]ports.Account
	entries     []ports.Entry
	byReference map[string]int
}

func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]ports.Account),
		entries:     make([]ports.Entry, 0),
		byReference: make(map[string]int),
	}
}

func (s *Store) Deposit(_ context.Context, entryID string, input ports.DepositInput, now time.Time) (ports.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := ports.Entry{
		EntryID:   entryID,
		Kind:      ports.EntryKindDeposit,
		Reference: input.Reference,
		ToAccount: input.AccountID,
		Amount:    input.Amount,
		CreatedAt: now.UTC(),
	}
	if existing, found, err := s.replay(entry); found || err != nil {
		return existing, found, err
	}
	if err := s.checkCredit(input.AccountID, input.Amount); err != nil {
		return ports.Entry{}, false, err
	}
	s.credit(input.AccountID, input.Amount, now)
	s.append(entry)
	return entry, false, nil
}

func (s *Store) Transfer(_ context.Context, entryID string, input ports.TransferInput, now time.Time) (ports.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := ports.Entry{
		EntryID:     entryID,
		Kind:        ports.EntryKindTransfer,
		Reference:   input.Reference,
		FromAccount: input.From,
		ToAccount:   input.To,
		Amount:      input.Amount,
		CreatedAt:   now.UTC(),
	}
	if existing, found, err := s.replay(entry); found || err != nil {
		return existing, found, err
	}
	from, ok := s.accounts[input.From]
	if !ok {
		return ports.Entry{}, false, domainerrors.ErrInsufficientFunds
	}
	if from.Balance < input.Amount {
		return ports.Entry{}, false, domainerrors.ErrInsufficientFunds
	}
	if err := s.checkCredit(input.To, input.Amount); err != nil {
		return ports.Entry{}, false, err
	}
	s.credit(input.From, -input.Amount, now)
	s.credit(input.To, input.Amount, now)
	s.append(entry)
	return entry, false, nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (ports.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[strings.TrimSpace(accountID)]
	if !ok {
		return ports.Account{}, domainerrors.ErrAccountNotFound
	}
	return account, nil
}

// ListEntries returns the newest entries touching accountID first.
func (s *Store) ListEntries(_ context.Context, accountID string, limit int) ([]ports.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accountID = strings.TrimSpace(accountID)
	items := make([]ports.Entry, 0)
	for i := len(s.entries) - 1; i >= 0 && len(items) < limit; i-- {
		entry := s.entries[i]
		if entry.FromAccount == accountID || entry.ToAccount == accountID {
			items = append(items, entry)
		}
	}
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) replay(entry ports.Entry) (ports.Entry, bool, error) {
	index, ok := s.byReference[entry.Reference]
	if !ok {
		return ports.Entry{}, false, nil
	}
	existing := s.entries[index]
	if existing.Kind != entry.Kind ||
		existing.FromAccount != entry.FromAccount ||
		existing.ToAccount != entry.ToAccount ||
		existing.Amount != entry.Amount {
		return ports.Entry{}, false, domainerrors.ErrReferenceConflict
	}
	return existing, true, nil
}

func (s *Store) checkCredit(accountID string, amount int64) error {
	if s.accounts[accountID].Balance > math.MaxInt64-amount {
		return domainerrors.ErrBalanceOverflow
	}
	return nil
}

func (s *Store) credit(accountID string, delta int64, now time.Time) {
	account := s.accounts[accountID]
	account.AccountID = accountID
	account.Balance += delta
	account.UpdatedAt = now.UTC()
	s.accounts[accountID] = account
}

func (s *Store) append(entry ports.Entry) {
	s.byReference[entry.Reference] = len(s.entries)
	s.entries = append(s.entries, entry)
}

var _ ports.Repository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
