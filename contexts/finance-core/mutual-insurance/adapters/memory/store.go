package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	sequence  int64
	published bool
}

// Store keeps every insurance record in process. mu guards the maps and is
// only held for copies in and out; the per-record guards serialize
// read-modify-write sequences and may be held across a funds transfer.
type Store struct {
	mu sync.RWMutex

	policies    map[string]entities.Policy
	claims      map[string]entities.Claim
	pools       map[string]entities.Pool
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	outboxSeq   int64

	guards *recordGuards
}

func NewStore() *Store {
	return &Store{
		policies:    make(map[string]entities.Policy),
		claims:      make(map[string]entities.Claim),
		pools:       make(map[string]entities.Pool),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		guards:      newRecordGuards(),
	}
}

func policyGuardKey(policyID string) string { return "policy:" + policyID }
func claimGuardKey(claimID string) string   { return "claim:" + claimID }
func poolGuardKey(poolID string) string     { return "pool:" + poolID }

func (s *Store) CreatePolicy(_ context.Context, policy entities.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[policy.PolicyID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.policies[policy.PolicyID] = policy.Clone()
	return nil
}

func (s *Store) GetPolicy(_ context.Context, policyID string) (entities.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[strings.TrimSpace(policyID)]
	if !ok {
		return entities.Policy{}, domainerrors.ErrPolicyNotFound
	}
	return policy.Clone(), nil
}

func (s *Store) UpdatePolicy(
	_ context.Context,
	policyID string,
	mutate func(*entities.Policy) error,
) (entities.Policy, error) {
	policyID = strings.TrimSpace(policyID)
	unlock := s.guards.lock(policyGuardKey(policyID))
	defer unlock()

	s.mu.RLock()
	current, ok := s.policies[policyID]
	s.mu.RUnlock()
	if !ok {
		return entities.Policy{}, domainerrors.ErrPolicyNotFound
	}
	working := current.Clone()
	if err := mutate(&working); err != nil {
		return entities.Policy{}, err
	}

	s.mu.Lock()
	s.policies[policyID] = working.Clone()
	s.mu.Unlock()
	return working, nil
}

func (s *Store) CreateClaim(_ context.Context, claim entities.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[claim.ClaimID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	if _, ok := s.policies[claim.PolicyID]; !ok {
		return domainerrors.ErrPolicyNotFound
	}
	s.claims[claim.ClaimID] = claim.Clone()
	return nil
}

func (s *Store) GetClaim(_ context.Context, claimID string) (entities.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[strings.TrimSpace(claimID)]
	if !ok {
		return entities.Claim{}, domainerrors.ErrClaimNotFound
	}
	return claim.Clone(), nil
}

func (s *Store) ListClaimsByPolicy(_ context.Context, policyID string) ([]entities.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policyID = strings.TrimSpace(policyID)
	items := make([]entities.Claim, 0)
	for _, claim := range s.claims {
		if claim.PolicyID == policyID {
			items = append(items, claim.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ClaimID < items[j].ClaimID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) UpdateClaim(
	_ context.Context,
	claimID string,
	mutate func(*entities.Claim) error,
) (entities.Claim, error) {
	claimID = strings.TrimSpace(claimID)
	unlock := s.guards.lock(claimGuardKey(claimID))
	defer unlock()

	s.mu.RLock()
	current, ok := s.claims[claimID]
	s.mu.RUnlock()
	if !ok {
		return entities.Claim{}, domainerrors.ErrClaimNotFound
	}
	working := current.Clone()
	if err := mutate(&working); err != nil {
		return entities.Claim{}, err
	}

	s.mu.Lock()
	s.claims[claimID] = working.Clone()
	s.mu.Unlock()
	return working, nil
}

func (s *Store) CreatePool(_ context.Context, pool entities.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pools[pool.PoolID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.pools[pool.PoolID] = pool.Clone()
	return nil
}

func (s *Store) GetPool(_ context.Context, poolID string) (entities.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[strings.TrimSpace(poolID)]
	if !ok {
		return entities.Pool{}, domainerrors.ErrPoolNotFound
	}
	return pool.Clone(), nil
}

func (s *Store) ListPools(_ context.Context) ([]entities.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		items = append(items, pool.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PoolID < items[j].PoolID
	})
	return items, nil
}

func (s *Store) UpdatePool(
	_ context.Context,
	poolID string,
	mutate func(*entities.Pool) error,
) (entities.Pool, error) {
	poolID = strings.TrimSpace(poolID)
	unlock := s.guards.lock(poolGuardKey(poolID))
	defer unlock()

	s.mu.RLock()
	current, ok := s.pools[poolID]
	s.mu.RUnlock()
	if !ok {
		return entities.Pool{}, domainerrors.ErrPoolNotFound
	}
	working := current.Clone()
	if err := mutate(&working); err != nil {
		return entities.Pool{}, err
	}

	s.mu.Lock()
	s.pools[poolID] = working.Clone()
	s.mu.Unlock()
	return working, nil
}

// SettleClaim takes the claim guard before the pool guard and publishes both
// records under one map lock so readers never see half a settlement.
func (s *Store) SettleClaim(
	_ context.Context,
	claimID string,
	poolID string,
	mutate func(*entities.Claim, *entities.Pool) error,
) (entities.Claim, entities.Pool, error) {
	claimID = strings.TrimSpace(claimID)
	poolID = strings.TrimSpace(poolID)
	unlockClaim := s.guards.lock(claimGuardKey(claimID))
	defer unlockClaim()
	unlockPool := s.guards.lock(poolGuardKey(poolID))
	defer unlockPool()

	s.mu.RLock()
	claim, claimOK := s.claims[claimID]
	pool, poolOK := s.pools[poolID]
	s.mu.RUnlock()
	if !claimOK {
		return entities.Claim{}, entities.Pool{}, domainerrors.ErrClaimNotFound
	}
	if !poolOK {
		return entities.Claim{}, entities.Pool{}, domainerrors.ErrPoolNotFound
	}

	workingClaim := claim.Clone()
	workingPool := pool.Clone()
	if err := mutate(&workingClaim, &workingPool); err != nil {
		return entities.Claim{}, entities.Pool{}, err
	}

	s.mu.Lock()
	s.claims[claimID] = workingClaim.Clone()
	s.pools[poolID] = workingPool.Clone()
	s.mu.Unlock()
	return workingClaim, workingPool, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimSpace(key)
	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Reserve(_ context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Key = strings.TrimSpace(record.Key)
	if existing, ok := s.idempotency[record.Key]; ok {
		if existing.ExpiresAt.IsZero() || !now.UTC().After(existing.ExpiresAt.UTC()) {
			return existing, false, nil
		}
	}
	s.idempotency[record.Key] = record
	return record, true, nil
}

func (s *Store) Release(_ context.Context, key string, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimSpace(key)
	if existing, ok := s.idempotency[key]; ok && existing.ResourceID == resourceID {
		delete(s.idempotency, key)
	}
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outboxSeq++
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
		sequence: s.outboxSeq,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := make([]outboxRecord, 0)
	for _, record := range s.outbox {
		if !record.published {
			pending = append(pending, record)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].sequence < pending[j].sequence
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(pending))
	for _, record := range pending {
		message := record.message
		message.Payload = append([]byte(nil), record.message.Payload...)
		items = append(items, message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	record.published = true
	s.outbox[strings.TrimSpace(outboxID)] = record
	return nil
}

// OutboxEvents returns every appended envelope in append order.
func (s *Store) OutboxEvents() []ports.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]outboxRecord, 0, len(s.outbox))
	for _, record := range s.outbox {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].sequence < records[j].sequence
	})
	events := make([]ports.EventEnvelope, 0, len(records))
	for _, record := range records {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(record.message.Payload, &envelope); err == nil {
			events = append(events, envelope)
		}
	}
	return events
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.PolicyRepository = (*Store)(nil)
var _ ports.ClaimRepository = (*Store)(nil)
var _ ports.PoolRepository = (*Store)(nil)
var _ ports.SettlementRepository = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
