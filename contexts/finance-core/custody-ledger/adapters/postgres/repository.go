package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	domainerrors "commonpool/contexts/finance-core/custody-ledger/domain/errors"
	"commonpool/contexts/finance-core/custody-ledger/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountModel struct {
	AccountID string    `gorm:"column:account_id;primaryKey"`
	Balance   int64     `gorm:"column:balance;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (accountModel) TableName() string { return "custody_accounts" }

type entryModel struct {
	EntryID     string    `gorm:"column:entry_id;primaryKey"`
	Kind        string    `gorm:"column:kind;not null"`
	Reference   string    `gorm:"column:reference;not null;uniqueIndex"`
	FromAccount string    `gorm:"column:from_account;index"`
	ToAccount   string    `gorm:"column:to_account;not null;index"`
	Amount      int64     `gorm:"column:amount;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (entryModel) TableName() string { return "custody_entries" }

// Repository applies each ledger movement in one transaction. Account rows
// are locked in account id order so opposing transfers cannot deadlock.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&accountModel{}, &entryModel{})
}

func (r *Repository) Deposit(ctx context.Context, entryID string, input ports.DepositInput, now time.Time) (ports.Entry, bool, error) {
	entry := ports.Entry{
		EntryID:   entryID,
		Kind:      ports.EntryKindDeposit,
		Reference: input.Reference,
		ToAccount: input.AccountID,
		Amount:    input.Amount,
		CreatedAt: now.UTC(),
	}
	return r.apply(ctx, entry)
}

func (r *Repository) Transfer(ctx context.Context, entryID string, input ports.TransferInput, now time.Time) (ports.Entry, bool, error) {
	entry := ports.Entry{
		EntryID:     entryID,
		Kind:        ports.EntryKindTransfer,
		Reference:   input.Reference,
		FromAccount: input.From,
		ToAccount:   input.To,
		Amount:      input.Amount,
		CreatedAt:   now.UTC(),
	}
	return r.apply(ctx, entry)
}

func (r *Repository) GetAccount(ctx context.Context, accountID string) (ports.Account, error) {
	var row accountModel
	err := r.db.WithContext(ctx).
		Where("account_id = ?", strings.TrimSpace(accountID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Account{}, domainerrors.ErrAccountNotFound
		}
		return ports.Account{}, r.logError("custody_repo_get_account_failed", err, "account_id", accountID)
	}
	return ports.Account{AccountID: row.AccountID, Balance: row.Balance, UpdatedAt: row.UpdatedAt.UTC()}, nil
}

func (r *Repository) ListEntries(ctx context.Context, accountID string, limit int) ([]ports.Entry, error) {
	accountID = strings.TrimSpace(accountID)
	var rows []entryModel
	err := r.db.WithContext(ctx).
		Where("from_account = ? OR to_account = ?", accountID, accountID).
		Order("created_at DESC").
		Order("entry_id DESC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("custody_repo_list_entries_failed", err, "account_id", accountID)
	}
	items := make([]ports.Entry, 0, len(rows))
	for _, row := range rows {
		items = append(items, entryFromModel(row))
	}
	return items, nil
}

func (r *Repository) apply(ctx context.Context, entry ports.Entry) (ports.Entry, bool, error) {
	var (
		result   ports.Entry
		replayed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, found, err := findByReference(tx, entry.Reference)
		if err != nil {
			return err
		}
		if found {
			if !samePayload(existing, entry) {
				return domainerrors.ErrReferenceConflict
			}
			result, replayed = existing, true
			return nil
		}

		if err := ensureAccounts(tx, entry, entry.CreatedAt); err != nil {
			return err
		}
		ids := lockOrder(entry)
		var locked []accountModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id IN ?", ids).
			Order("account_id").
			Find(&locked).
			Error; err != nil {
			return err
		}
		balances := make(map[string]int64, len(locked))
		for _, row := range locked {
			balances[row.AccountID] = row.Balance
		}

		if balances[entry.ToAccount] > math.MaxInt64-entry.Amount {
			return domainerrors.ErrBalanceOverflow
		}
		if entry.Kind == ports.EntryKindTransfer {
			if balances[entry.FromAccount] < entry.Amount {
				return domainerrors.ErrInsufficientFunds
			}
			if err := adjust(tx, entry.FromAccount, -entry.Amount, entry.CreatedAt); err != nil {
				return err
			}
		}
		if err := adjust(tx, entry.ToAccount, entry.Amount, entry.CreatedAt); err != nil {
			return err
		}
		row := entryToModel(entry)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		result = entry
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent writer claimed the reference between the lookup
			// and the insert; the stored row decides replay or conflict.
			var existing entryModel
			if lookupErr := r.db.WithContext(ctx).Where("reference = ?", entry.Reference).First(&existing).Error; lookupErr == nil {
				if samePayload(entryFromModel(existing), entry) {
					return entryFromModel(existing), true, nil
				}
				return ports.Entry{}, false, domainerrors.ErrReferenceConflict
			}
		}
		if isDomainError(err) {
			return ports.Entry{}, false, err
		}
		return ports.Entry{}, false, r.logError("custody_repo_apply_failed", err,
			"reference", entry.Reference,
			"kind", string(entry.Kind),
		)
	}
	return result, replayed, nil
}

func findByReference(tx *gorm.DB, reference string) (ports.Entry, bool, error) {
	var row entryModel
	err := tx.Where("reference = ?", reference).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.Entry{}, false, nil
	}
	if err != nil {
		return ports.Entry{}, false, err
	}
	return entryFromModel(row), true, nil
}

// ensureAccounts creates the credited account on first use. The debited
// account must already exist; a missing source reads as zero balance.
func ensureAccounts(tx *gorm.DB, entry ports.Entry, now time.Time) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&accountModel{AccountID: entry.ToAccount, UpdatedAt: now.UTC()}).
		Error
}

func lockOrder(entry ports.Entry) []string {
	ids := []string{entry.ToAccount}
	if entry.FromAccount != "" && entry.FromAccount != entry.ToAccount {
		ids = append(ids, entry.FromAccount)
	}
	sort.Strings(ids)
	return ids
}

func adjust(tx *gorm.DB, accountID string, delta int64, now time.Time) error {
	return tx.Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": now.UTC(),
		}).
		Error
}

func samePayload(existing ports.Entry, candidate ports.Entry) bool {
	return existing.Kind == candidate.Kind &&
		existing.FromAccount == candidate.FromAccount &&
		existing.ToAccount == candidate.ToAccount &&
		existing.Amount == candidate.Amount
}

func entryToModel(entry ports.Entry) entryModel {
	return entryModel{
		EntryID:     entry.EntryID,
		Kind:        string(entry.Kind),
		Reference:   entry.Reference,
		FromAccount: entry.FromAccount,
		ToAccount:   entry.ToAccount,
		Amount:      entry.Amount,
		CreatedAt:   entry.CreatedAt.UTC(),
	}
}

func entryFromModel(row entryModel) ports.Entry {
	return ports.Entry{
		EntryID:     row.EntryID,
		Kind:        ports.EntryKind(row.Kind),
		Reference:   row.Reference,
		FromAccount: row.FromAccount,
		ToAccount:   row.ToAccount,
		Amount:      row.Amount,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

func isDomainError(err error) bool {
	return errors.Is(err, domainerrors.ErrInsufficientFunds) ||
		errors.Is(err, domainerrors.ErrReferenceConflict) ||
		errors.Is(err, domainerrors.ErrAccountNotFound) ||
		errors.Is(err, domainerrors.ErrBalanceOverflow) ||
		errors.Is(err, domainerrors.ErrInvalidInput)
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "finance-core/custody-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("custody repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.Repository = (*Repository)(nil)
