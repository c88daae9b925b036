package postgresadapter

import (
	"strings"
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
)

type policyModel struct {
	PolicyID       string     `gorm:"column:policy_id;primaryKey"`
	Owner          string     `gorm:"column:owner;not null"`
	Premium        int64      `gorm:"column:premium;not null"`
	Coverage       int64      `gorm:"column:coverage;not null"`
	Conditions     []byte     `gorm:"column:conditions"`
	Active         bool       `gorm:"column:active;not null"`
	VerifierQuorum int        `gorm:"column:verifier_quorum;not null"`
	PremiumsPaid   int        `gorm:"column:premiums_paid;not null"`
	LastPremiumAt  *time.Time `gorm:"column:last_premium_at"`
	CreatedBy      string     `gorm:"column:created_by;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
	DeactivatedAt  *time.Time `gorm:"column:deactivated_at"`
}

func (policyModel) TableName() string {
	return "insurance_policies"
}

func policyModelFromEntity(policy entities.Policy) policyModel {
	return policyModel{
		PolicyID:       strings.TrimSpace(policy.PolicyID),
		Owner:          policy.Owner,
		Premium:        policy.Premium,
		Coverage:       policy.Coverage,
		Conditions:     append([]byte(nil), policy.Conditions...),
		Active:         policy.Active,
		VerifierQuorum: policy.VerifierQuorum,
		PremiumsPaid:   policy.PremiumsPaid,
		LastPremiumAt:  normalizeOptionalTime(policy.LastPremiumAt),
		CreatedBy:      policy.CreatedBy,
		CreatedAt:      policy.CreatedAt.UTC(),
		UpdatedAt:      policy.UpdatedAt.UTC(),
		DeactivatedAt:  normalizeOptionalTime(policy.DeactivatedAt),
	}
}

func (m policyModel) toEntity() entities.Policy {
	return entities.Policy{
		PolicyID:       m.PolicyID,
		Owner:          m.Owner,
		Premium:        m.Premium,
		Coverage:       m.Coverage,
		Conditions:     append([]byte(nil), m.Conditions...),
		Active:         m.Active,
		VerifierQuorum: m.VerifierQuorum,
		PremiumsPaid:   m.PremiumsPaid,
		LastPremiumAt:  normalizeOptionalTime(m.LastPremiumAt),
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		DeactivatedAt:  normalizeOptionalTime(m.DeactivatedAt),
	}
}

type claimModel struct {
	ClaimID    string     `gorm:"column:claim_id;primaryKey"`
	PolicyID   string     `gorm:"column:policy_id;not null;index"`
	Claimant   string     `gorm:"column:claimant;not null"`
	Amount     int64      `gorm:"column:amount;not null"`
	Quorum     int        `gorm:"column:quorum;not null"`
	Status     string     `gorm:"column:status;not null"`
	Verified   bool       `gorm:"column:verified;not null"`
	Paid       bool       `gorm:"column:paid;not null"`
	FiledBy    string     `gorm:"column:filed_by;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
	VerifiedAt *time.Time `gorm:"column:verified_at"`
	PaidAt     *time.Time `gorm:"column:paid_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;not null"`
}

func (claimModel) TableName() string {
	return "insurance_claims"
}

func claimModelFromEntity(claim entities.Claim) claimModel {
	return claimModel{
		ClaimID:    strings.TrimSpace(claim.ClaimID),
		PolicyID:   claim.PolicyID,
		Claimant:   claim.Claimant,
		Amount:     claim.Amount,
		Quorum:     claim.Quorum,
		Status:     string(claim.Status),
		Verified:   claim.Verified,
		Paid:       claim.Paid,
		FiledBy:    claim.FiledBy,
		CreatedAt:  claim.CreatedAt.UTC(),
		VerifiedAt: normalizeOptionalTime(claim.VerifiedAt),
		PaidAt:     normalizeOptionalTime(claim.PaidAt),
		UpdatedAt:  claim.UpdatedAt.UTC(),
	}
}

func (m claimModel) toEntity(verifiers []claimVerifierModel) entities.Claim {
	names := make([]string, 0, len(verifiers))
	for _, verifier := range verifiers {
		names = append(names, verifier.Verifier)
	}
	return entities.Claim{
		ClaimID:    m.ClaimID,
		PolicyID:   m.PolicyID,
		Claimant:   m.Claimant,
		Verifiers:  names,
		Amount:     m.Amount,
		Quorum:     m.Quorum,
		Status:     entities.ClaimStatus(m.Status),
		Verified:   m.Verified,
		Paid:       m.Paid,
		FiledBy:    m.FiledBy,
		CreatedAt:  m.CreatedAt.UTC(),
		VerifiedAt: normalizeOptionalTime(m.VerifiedAt),
		PaidAt:     normalizeOptionalTime(m.PaidAt),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

// claimVerifierModel keeps arrival order in position; the composite key
// rejects a repeated verifier at the storage level too.
type claimVerifierModel struct {
	ClaimID   string    `gorm:"column:claim_id;primaryKey"`
	Verifier  string    `gorm:"column:verifier;primaryKey"`
	Position  int       `gorm:"column:position;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (claimVerifierModel) TableName() string {
	return "insurance_claim_verifiers"
}

type poolModel struct {
	PoolID         string    `gorm:"column:pool_id;primaryKey"`
	TotalAmount    int64     `gorm:"column:total_amount;not null;check:total_amount >= 0"`
	PaidOut        int64     `gorm:"column:paid_out;not null"`
	AdminWithdrawn int64     `gorm:"column:admin_withdrawn;not null"`
	CreatedBy      string    `gorm:"column:created_by;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (poolModel) TableName() string {
	return "insurance_pools"
}

func poolModelFromEntity(pool entities.Pool) poolModel {
	return poolModel{
		PoolID:         strings.TrimSpace(pool.PoolID),
		TotalAmount:    pool.TotalAmount,
		PaidOut:        pool.PaidOut,
		AdminWithdrawn: pool.AdminWithdrawn,
		CreatedBy:      pool.CreatedBy,
		CreatedAt:      pool.CreatedAt.UTC(),
		UpdatedAt:      pool.UpdatedAt.UTC(),
	}
}

func (m poolModel) toEntity(accounts []poolAccountModel) entities.Pool {
	pool := entities.Pool{
		PoolID:         m.PoolID,
		TotalAmount:    m.TotalAmount,
		Stakers:        make([]string, 0, len(accounts)),
		Accounts:       make(map[string]entities.Account, len(accounts)),
		PaidOut:        m.PaidOut,
		AdminWithdrawn: m.AdminWithdrawn,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	for _, account := range accounts {
		pool.Stakers = append(pool.Stakers, account.Owner)
		pool.Accounts[account.Owner] = entities.Account{
			Owner:          account.Owner,
			Balance:        account.Balance,
			TotalStaked:    account.TotalStaked,
			TotalWithdrawn: account.TotalWithdrawn,
			UpdatedAt:      account.UpdatedAt.UTC(),
		}
	}
	return pool
}

type poolAccountModel struct {
	PoolID         string    `gorm:"column:pool_id;primaryKey"`
	Owner          string    `gorm:"column:owner;primaryKey"`
	Position       int       `gorm:"column:position;not null"`
	Balance        int64     `gorm:"column:balance;not null;check:balance >= 0"`
	TotalStaked    int64     `gorm:"column:total_staked;not null"`
	TotalWithdrawn int64     `gorm:"column:total_withdrawn;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (poolAccountModel) TableName() string {
	return "insurance_pool_accounts"
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash;not null"`
	ResourceID  string    `gorm:"column:resource_id;not null"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null"`
}

func (idempotencyModel) TableName() string {
	return "insurance_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type;not null"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;not null"`
	Status       string     `gorm:"column:status;not null;index"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "insurance_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
