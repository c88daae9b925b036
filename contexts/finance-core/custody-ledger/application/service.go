package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "commonpool/contexts/finance-core/custody-ledger/domain/errors"
	"commonpool/contexts/finance-core/custody-ledger/ports"
)

const moduleName = "finance-core/custody-ledger"

type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// Deposit credits funds arriving from outside the ledger. A blank reference
// gets a generated one, so only explicitly keyed deposits replay.
func (s Service) Deposit(ctx context.Context, input ports.DepositInput) (ports.Entry, bool, error) {
	input.AccountID = strings.TrimSpace(input.AccountID)
	input.Reference = strings.TrimSpace(input.Reference)
	if input.AccountID == "" || input.Amount <= 0 {
		return ports.Entry{}, false, domainerrors.ErrInvalidInput
	}

	entryID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.Entry{}, false, err
	}
	if input.Reference == "" {
		input.Reference = "deposit:" + entryID
	}
	entry, replayed, err := s.Repo.Deposit(ctx, entryID, input, s.now())
	if err != nil {
		resolveLogger(s.Logger).Warn("custody deposit rejected",
			"event", "custody_deposit_rejected",
			"module", moduleName,
			"layer", "application",
			"account_id", input.AccountID,
			"reference", input.Reference,
			"error", err.Error(),
		)
		return ports.Entry{}, false, err
	}

	resolveLogger(s.Logger).Info("custody deposit applied",
		"event", "custody_deposit_applied",
		"module", moduleName,
		"layer", "application",
		"entry_id", entry.EntryID,
		"account_id", entry.ToAccount,
		"amount", entry.Amount,
		"replayed", replayed,
	)
	return entry, replayed, nil
}

// Transfer moves funds between two accounts. The reference is mandatory.
func (s Service) Transfer(ctx context.Context, input ports.TransferInput) (ports.Entry, bool, error) {
	input.From = strings.TrimSpace(input.From)
	input.To = strings.TrimSpace(input.To)
	input.Reference = strings.TrimSpace(input.Reference)
	if input.From == "" || input.To == "" || input.Reference == "" || input.Amount <= 0 {
		return ports.Entry{}, false, domainerrors.ErrInvalidInput
	}
	// A self-transfer moves nothing but would still read as a funded movement.
	if input.From == input.To {
		return ports.Entry{}, false, domainerrors.ErrInvalidInput
	}

	entryID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.Entry{}, false, err
	}
	entry, replayed, err := s.Repo.Transfer(ctx, entryID, input, s.now())
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, domainerrors.ErrInsufficientFunds) &&
			!errors.Is(err, domainerrors.ErrReferenceConflict) &&
			!errors.Is(err, domainerrors.ErrBalanceOverflow) &&
			!errors.Is(err, domainerrors.ErrAccountNotFound) {
			level = slog.LevelError
		}
		resolveLogger(s.Logger).Log(ctx, level, "custody transfer rejected",
			"event", "custody_transfer_rejected",
			"module", moduleName,
			"layer", "application",
			"from_account", input.From,
			"to_account", input.To,
			"amount", input.Amount,
			"reference", input.Reference,
			"error", err.Error(),
		)
		return ports.Entry{}, false, err
	}

	resolveLogger(s.Logger).Info("custody transfer applied",
		"event", "custody_transfer_applied",
		"module", moduleName,
		"layer", "application",
		"entry_id", entry.EntryID,
		"from_account", entry.FromAccount,
		"to_account", entry.ToAccount,
		"amount", entry.Amount,
		"reference", entry.Reference,
		"replayed", replayed,
	)
	return entry, replayed, nil
}

// GetAccount reports a zero balance for accounts that never received funds.
func (s Service) GetAccount(ctx context.Context, accountID string) (ports.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ports.Account{}, domainerrors.ErrInvalidInput
	}
	account, err := s.Repo.GetAccount(ctx, accountID)
	if errors.Is(err, domainerrors.ErrAccountNotFound) {
		return ports.Account{AccountID: accountID}, nil
	}
	return account, err
}

func (s Service) ListEntries(ctx context.Context, accountID string, limit int) ([]ports.Entry, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Repo.ListEntries(ctx, accountID, limit)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
