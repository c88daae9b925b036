package ports

import (
	"context"
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	contractsv1 "commonpool/contracts/gen/events/v1"
)

// Update* methods hold the record's exclusive guard for the whole call: load,
// run mutate on a working copy, persist only when mutate returns nil.
// Nothing is written when mutate fails.

type PolicyRepository interface {
	CreatePolicy(ctx context.Context, policy entities.Policy) error
	GetPolicy(ctx context.Context, policyID string) (entities.Policy, error)
	UpdatePolicy(ctx context.Context, policyID string, mutate func(*entities.Policy) error) (entities.Policy, error)
}

type ClaimRepository interface {
	CreateClaim(ctx context.Context, claim entities.Claim) error
	GetClaim(ctx context.Context, claimID string) (entities.Claim, error)
	ListClaimsByPolicy(ctx context.Context, policyID string) ([]entities.Claim, error)
	UpdateClaim(ctx context.Context, claimID string, mutate func(*entities.Claim) error) (entities.Claim, error)
}

type PoolRepository interface {
	CreatePool(ctx context.Context, pool entities.Pool) error
	GetPool(ctx context.Context, poolID string) (entities.Pool, error)
	ListPools(ctx context.Context) ([]entities.Pool, error)
	UpdatePool(ctx context.Context, poolID string, mutate func(*entities.Pool) error) (entities.Pool, error)
}

// SettlementRepository acquires the claim guard, then the pool guard, and
// commits both records as one unit.
type SettlementRepository interface {
	SettleClaim(
		ctx context.Context,
		claimID string,
		poolID string,
		mutate func(*entities.Claim, *entities.Pool) error,
	) (entities.Claim, entities.Pool, error)
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVerifier Role = "verifier"
)

type Authorizer interface {
	HasRole(ctx context.Context, subject string, role Role) (bool, error)
}

type TransferRequest struct {
	From      string
	To        string
	Amount    int64
	Reference string
}

// FundsTransfer moves value between custody accounts. Implementations return
// domainerrors.ErrInsufficientFunds when the source cannot cover Amount and
// treat a repeated Reference as already applied.
type FundsTransfer interface {
	Transfer(ctx context.Context, req TransferRequest) error
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	ResourceID  string
	ExpiresAt   time.Time
}

// IdempotencyStore reserves a key before the keyed resource is written.
// Reserve inserts record unless an unexpired record already holds the key;
// then it returns that record and false. Release drops a reservation whose
// write failed, and only while it still names resourceID.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Reserve(ctx context.Context, record IdempotencyRecord, now time.Time) (IdempotencyRecord, bool, error)
	Release(ctx context.Context, key string, resourceID string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// ReconciliationReport is the pool conservation check at one instant.
type ReconciliationReport struct {
	PoolID         string
	TotalAmount    int64
	AccountsTotal  int64
	PaidOut        int64
	AdminWithdrawn int64
	StakerCount    int
	Drift          int64
	Balanced       bool
	CheckedAt      time.Time
}

// DriftObserver receives every reconciliation result the background
// reconciler computes.
type DriftObserver interface {
	ObserveReconciliation(report ReconciliationReport)
}
