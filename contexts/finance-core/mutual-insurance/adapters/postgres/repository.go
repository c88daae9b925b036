package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository persists insurance records in PostgreSQL. Every Update* call
// runs in one transaction holding SELECT ... FOR UPDATE row locks; the
// settlement path locks the claim row before the pool row.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates every insurance table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&policyModel{},
		&claimModel{},
		&claimVerifierModel{},
		&poolModel{},
		&poolAccountModel{},
		&idempotencyModel{},
		&outboxModel{},
	)
}

func (r *Repository) CreatePolicy(ctx context.Context, policy entities.Policy) error {
	row := policyModelFromEntity(policy)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return r.logError("insurance_repo_create_policy_failed", err, "policy_id", row.PolicyID)
	}
	return nil
}

func (r *Repository) GetPolicy(ctx context.Context, policyID string) (entities.Policy, error) {
	var row policyModel
	err := r.db.WithContext(ctx).
		Where("policy_id = ?", strings.TrimSpace(policyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Policy{}, domainerrors.ErrPolicyNotFound
		}
		return entities.Policy{}, r.logError("insurance_repo_get_policy_failed", err, "policy_id", strings.TrimSpace(policyID))
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdatePolicy(
	ctx context.Context,
	policyID string,
	mutate func(*entities.Policy) error,
) (entities.Policy, error) {
	policyID = strings.TrimSpace(policyID)
	var updated entities.Policy
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row policyModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("policy_id = ?", policyID).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrPolicyNotFound
			}
			return err
		}
		policy := row.toEntity()
		if err := mutate(&policy); err != nil {
			return err
		}
		next := policyModelFromEntity(policy)
		if err := tx.Model(&policyModel{}).
			Where("policy_id = ?", policyID).
			Updates(map[string]any{
				"active":          next.Active,
				"premiums_paid":   next.PremiumsPaid,
				"last_premium_at": next.LastPremiumAt,
				"updated_at":      next.UpdatedAt,
				"deactivated_at":  next.DeactivatedAt,
			}).Error; err != nil {
			return err
		}
		updated = policy
		return nil
	})
	if err != nil {
		return entities.Policy{}, r.translateTxError("insurance_repo_update_policy_failed", err, "policy_id", policyID)
	}
	return updated, nil
}

func (r *Repository) CreateClaim(ctx context.Context, claim entities.Claim) error {
	row := claimModelFromEntity(claim)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return insertVerifiers(tx, claim.ClaimID, claim.Verifiers, 0, claim.UpdatedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return r.logError("insurance_repo_create_claim_failed", err, "claim_id", row.ClaimID)
	}
	return nil
}

func (r *Repository) GetClaim(ctx context.Context, claimID string) (entities.Claim, error) {
	claim, err := loadClaim(r.db.WithContext(ctx), strings.TrimSpace(claimID), false)
	if err != nil {
		if errors.Is(err, domainerrors.ErrClaimNotFound) {
			return entities.Claim{}, err
		}
		return entities.Claim{}, r.logError("insurance_repo_get_claim_failed", err, "claim_id", strings.TrimSpace(claimID))
	}
	return claim, nil
}

func (r *Repository) ListClaimsByPolicy(ctx context.Context, policyID string) ([]entities.Claim, error) {
	db := r.db.WithContext(ctx)
	var rows []claimModel
	if err := db.
		Where("policy_id = ?", strings.TrimSpace(policyID)).
		Order("created_at ASC, claim_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("insurance_repo_list_claims_failed", err, "policy_id", strings.TrimSpace(policyID))
	}
	if len(rows) == 0 {
		return []entities.Claim{}, nil
	}

	claimIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		claimIDs = append(claimIDs, row.ClaimID)
	}
	var verifierRows []claimVerifierModel
	if err := db.
		Where("claim_id IN ?", claimIDs).
		Order("claim_id ASC, position ASC").
		Find(&verifierRows).Error; err != nil {
		return nil, r.logError("insurance_repo_list_claim_verifiers_failed", err, "policy_id", strings.TrimSpace(policyID))
	}
	byClaim := make(map[string][]claimVerifierModel, len(rows))
	for _, verifier := range verifierRows {
		byClaim[verifier.ClaimID] = append(byClaim[verifier.ClaimID], verifier)
	}

	items := make([]entities.Claim, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity(byClaim[row.ClaimID]))
	}
	return items, nil
}

func (r *Repository) UpdateClaim(
	ctx context.Context,
	claimID string,
	mutate func(*entities.Claim) error,
) (entities.Claim, error) {
	claimID = strings.TrimSpace(claimID)
	var updated entities.Claim
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := loadClaim(tx, claimID, true)
		if err != nil {
			return err
		}
		before := len(claim.Verifiers)
		if err := mutate(&claim); err != nil {
			return err
		}
		if err := saveClaim(tx, claim, before); err != nil {
			return err
		}
		updated = claim
		return nil
	})
	if err != nil {
		return entities.Claim{}, r.translateTxError("insurance_repo_update_claim_failed", err, "claim_id", claimID)
	}
	return updated, nil
}

func (r *Repository) CreatePool(ctx context.Context, pool entities.Pool) error {
	row := poolModelFromEntity(pool)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return savePoolAccounts(tx, pool)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return r.logError("insurance_repo_create_pool_failed", err, "pool_id", row.PoolID)
	}
	return nil
}

func (r *Repository) GetPool(ctx context.Context, poolID string) (entities.Pool, error) {
	pool, err := loadPool(r.db.WithContext(ctx), strings.TrimSpace(poolID), false)
	if err != nil {
		if errors.Is(err, domainerrors.ErrPoolNotFound) {
			return entities.Pool{}, err
		}
		return entities.Pool{}, r.logError("insurance_repo_get_pool_failed", err, "pool_id", strings.TrimSpace(poolID))
	}
	return pool, nil
}

// ListPools reads every pool inside one repeatable-read snapshot so each
// pool's totals and accounts agree.
func (r *Repository) ListPools(ctx context.Context) ([]entities.Pool, error) {
	var items []entities.Pool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET TRANSACTION ISOLATION LEVEL REPEATABLE READ").Error; err != nil {
			return err
		}
		var rows []poolModel
		if err := tx.Order("pool_id ASC").Find(&rows).Error; err != nil {
			return err
		}
		var accountRows []poolAccountModel
		if err := tx.Order("pool_id ASC, position ASC").Find(&accountRows).Error; err != nil {
			return err
		}
		byPool := make(map[string][]poolAccountModel, len(rows))
		for _, account := range accountRows {
			byPool[account.PoolID] = append(byPool[account.PoolID], account)
		}
		items = make([]entities.Pool, 0, len(rows))
		for _, row := range rows {
			items = append(items, row.toEntity(byPool[row.PoolID]))
		}
		return nil
	})
	if err != nil {
		return nil, r.logError("insurance_repo_list_pools_failed", err)
	}
	return items, nil
}

func (r *Repository) UpdatePool(
	ctx context.Context,
	poolID string,
	mutate func(*entities.Pool) error,
) (entities.Pool, error) {
	poolID = strings.TrimSpace(poolID)
	var updated entities.Pool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pool, err := loadPool(tx, poolID, true)
		if err != nil {
			return err
		}
		if err := mutate(&pool); err != nil {
			return err
		}
		if err := savePool(tx, pool); err != nil {
			return err
		}
		updated = pool
		return nil
	})
	if err != nil {
		return entities.Pool{}, r.translateTxError("insurance_repo_update_pool_failed", err, "pool_id", poolID)
	}
	return updated, nil
}

func (r *Repository) SettleClaim(
	ctx context.Context,
	claimID string,
	poolID string,
	mutate func(*entities.Claim, *entities.Pool) error,
) (entities.Claim, entities.Pool, error) {
	claimID = strings.TrimSpace(claimID)
	poolID = strings.TrimSpace(poolID)
	var (
		settledClaim entities.Claim
		settledPool  entities.Pool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := loadClaim(tx, claimID, true)
		if err != nil {
			return err
		}
		pool, err := loadPool(tx, poolID, true)
		if err != nil {
			return err
		}
		before := len(claim.Verifiers)
		if err := mutate(&claim, &pool); err != nil {
			return err
		}
		if err := saveClaim(tx, claim, before); err != nil {
			return err
		}
		if err := savePool(tx, pool); err != nil {
			return err
		}
		settledClaim = claim
		settledPool = pool
		return nil
	})
	if err != nil {
		return entities.Claim{}, entities.Pool{}, r.translateTxError("insurance_repo_settle_claim_failed", err,
			"claim_id", claimID,
			"pool_id", poolID,
		)
	}
	return settledClaim, settledPool, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("insurance_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("insurance_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		ResourceID:  row.ResourceID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

// Reserve clears an expired holder and inserts in one transaction; the
// primary key decides between concurrent reservations.
func (r *Repository) Reserve(ctx context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		ResourceID:  strings.TrimSpace(record.ResourceID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	var (
		holder   idempotencyModel
		reserved bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ? AND expires_at < ?", row.Key, now.UTC()).
			Delete(&idempotencyModel{}).Error; err != nil {
			return err
		}
		create := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&row)
		if create.Error != nil {
			return create.Error
		}
		if create.RowsAffected > 0 {
			holder, reserved = row, true
			return nil
		}
		return tx.Where("key = ?", row.Key).First(&holder).Error
	})
	if err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("insurance_repo_idempotency_reserve_failed", err, "idempotency_key", row.Key)
	}
	return ports.IdempotencyRecord{
		Key:         holder.Key,
		RequestHash: holder.RequestHash,
		ResourceID:  holder.ResourceID,
		ExpiresAt:   holder.ExpiresAt.UTC(),
	}, reserved, nil
}

func (r *Repository) Release(ctx context.Context, key string, resourceID string) error {
	if err := r.db.WithContext(ctx).
		Where("key = ? AND resource_id = ?", strings.TrimSpace(key), strings.TrimSpace(resourceID)).
		Delete(&idempotencyModel{}).Error; err != nil {
		return r.logError("insurance_repo_idempotency_release_failed", err, "idempotency_key", strings.TrimSpace(key))
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("insurance_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("insurance_repo_append_outbox_insert_failed", create.Error, "outbox_id", row.OutboxID)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("insurance_repo_append_outbox_load_existing_failed", err, "outbox_id", row.OutboxID)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("insurance_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("insurance_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func loadClaim(tx *gorm.DB, claimID string, forUpdate bool) (entities.Claim, error) {
	query := tx
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row claimModel
	if err := query.Where("claim_id = ?", claimID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Claim{}, domainerrors.ErrClaimNotFound
		}
		return entities.Claim{}, err
	}
	var verifiers []claimVerifierModel
	if err := tx.Where("claim_id = ?", claimID).Order("position ASC").Find(&verifiers).Error; err != nil {
		return entities.Claim{}, err
	}
	return row.toEntity(verifiers), nil
}

// saveClaim writes the claim row and appends verifiers added after index
// before. Verifier sets only grow.
func saveClaim(tx *gorm.DB, claim entities.Claim, before int) error {
	row := claimModelFromEntity(claim)
	if err := tx.Model(&claimModel{}).
		Where("claim_id = ?", row.ClaimID).
		Updates(map[string]any{
			"status":      row.Status,
			"verified":    row.Verified,
			"paid":        row.Paid,
			"verified_at": row.VerifiedAt,
			"paid_at":     row.PaidAt,
			"updated_at":  row.UpdatedAt,
		}).Error; err != nil {
		return err
	}
	if len(claim.Verifiers) < before {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return insertVerifiers(tx, claim.ClaimID, claim.Verifiers[before:], before, claim.UpdatedAt)
}

func insertVerifiers(tx *gorm.DB, claimID string, verifiers []string, offset int, at time.Time) error {
	if len(verifiers) == 0 {
		return nil
	}
	rows := make([]claimVerifierModel, 0, len(verifiers))
	for i, verifier := range verifiers {
		rows = append(rows, claimVerifierModel{
			ClaimID:   claimID,
			Verifier:  verifier,
			Position:  offset + i,
			CreatedAt: at.UTC(),
		})
	}
	return tx.Create(&rows).Error
}

func loadPool(tx *gorm.DB, poolID string, forUpdate bool) (entities.Pool, error) {
	query := tx
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row poolModel
	if err := query.Where("pool_id = ?", poolID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Pool{}, domainerrors.ErrPoolNotFound
		}
		return entities.Pool{}, err
	}
	var accounts []poolAccountModel
	if err := tx.Where("pool_id = ?", poolID).Order("position ASC").Find(&accounts).Error; err != nil {
		return entities.Pool{}, err
	}
	return row.toEntity(accounts), nil
}

func savePool(tx *gorm.DB, pool entities.Pool) error {
	row := poolModelFromEntity(pool)
	if err := tx.Model(&poolModel{}).
		Where("pool_id = ?", row.PoolID).
		Updates(map[string]any{
			"total_amount":    row.TotalAmount,
			"paid_out":        row.PaidOut,
			"admin_withdrawn": row.AdminWithdrawn,
			"updated_at":      row.UpdatedAt,
		}).Error; err != nil {
		return err
	}
	return savePoolAccounts(tx, pool)
}

func savePoolAccounts(tx *gorm.DB, pool entities.Pool) error {
	if len(pool.Stakers) == 0 {
		return nil
	}
	rows := make([]poolAccountModel, 0, len(pool.Stakers))
	for position, owner := range pool.Stakers {
		account := pool.Accounts[owner]
		rows = append(rows, poolAccountModel{
			PoolID:         pool.PoolID,
			Owner:          owner,
			Position:       position,
			Balance:        account.Balance,
			TotalStaked:    account.TotalStaked,
			TotalWithdrawn: account.TotalWithdrawn,
			UpdatedAt:      account.UpdatedAt.UTC(),
		})
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pool_id"}, {Name: "owner"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"balance",
			"total_staked",
			"total_withdrawn",
			"updated_at",
		}),
	}).Create(&rows).Error
}

// translateTxError passes domain errors through untouched and logs the rest.
func (r *Repository) translateTxError(event string, err error, attrs ...any) error {
	var domainErr *domainerrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if isUniqueViolation(err) {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return r.logError(event, err, attrs...)
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "finance-core/mutual-insurance",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("insurance repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.PolicyRepository = (*Repository)(nil)
var _ ports.ClaimRepository = (*Repository)(nil)
var _ ports.PoolRepository = (*Repository)(nil)
var _ ports.SettlementRepository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
