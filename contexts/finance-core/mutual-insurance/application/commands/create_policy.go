package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "commonpool/contexts/finance-core/mutual-insurance/application"
	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/domain/services"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
	contractsv1 "commonpool/contracts/gen/events/v1"
)

type CreatePolicyCommand struct {
	CallerID       string
	IdempotencyKey string
	Owner          string
	Premium        int64
	Coverage       int64
	Conditions     []byte
	VerifierQuorum int
}

type CreatePolicyResult struct {
	Policy   entities.Policy
	Replayed bool
}

// CreatePolicyUseCase issues policies. Only Admin callers may issue.
type CreatePolicyUseCase struct {
	Policies       ports.PolicyRepository
	Authorizer     ports.Authorizer
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	DefaultQuorum  int
	Logger         *slog.Logger
}

func (uc CreatePolicyUseCase) Execute(ctx context.Context, cmd CreatePolicyCommand) (CreatePolicyResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	callerID := strings.TrimSpace(cmd.CallerID)
	owner := strings.TrimSpace(cmd.Owner)
	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)

	if callerID == "" || owner == "" || cmd.Premium <= 0 || cmd.Coverage <= 0 || cmd.VerifierQuorum < 0 ||
		entities.IsCustodyAccount(owner) {
		logger.Warn("policy create validation failed",
			"event", "insurance_policy_create_validation_failed",
			"module", moduleName,
			"layer", "application",
			"caller_id", callerID,
			"owner", owner,
		)
		return CreatePolicyResult{}, domainerrors.ErrInvalidInput
	}
	if err := requireRole(ctx, uc.Authorizer, callerID, ports.RoleAdmin); err != nil {
		logger.Warn("policy create rejected",
			"event", "insurance_policy_create_rejected",
			"module", moduleName,
			"layer", "application",
			"caller_id", callerID,
			"error", err.Error(),
		)
		return CreatePolicyResult{}, err
	}

	quorum, err := services.ResolveQuorum(cmd.VerifierQuorum, uc.DefaultQuorum)
	if err != nil {
		return CreatePolicyResult{}, err
	}
	now := resolveNow(uc.Clock)
	requestHash := hashPayload(map[string]any{
		"op":         "create_policy",
		"caller_id":  callerID,
		"owner":      owner,
		"premium":    cmd.Premium,
		"coverage":   cmd.Coverage,
		"conditions": base64.StdEncoding.EncodeToString(cmd.Conditions),
		"quorum":     quorum,
	})
	policyID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreatePolicyResult{}, err
	}
	guard, replayID, err := reserveIdempotency(ctx, uc.Idempotency, idempotencyKey, requestHash, policyID, uc.IdempotencyTTL, now)
	if err != nil {
		logger.Error("policy create idempotency reserve failed",
			"event", "insurance_policy_create_idempotency_reserve_failed",
			"module", moduleName,
			"layer", "application",
			"caller_id", callerID,
			"error", err.Error(),
		)
		return CreatePolicyResult{}, err
	}
	if replayID != "" {
		policy, err := uc.Policies.GetPolicy(ctx, replayID)
		if errors.Is(err, domainerrors.ErrPolicyNotFound) {
			return CreatePolicyResult{}, domainerrors.ErrIdempotencyInProgress
		}
		if err != nil {
			return CreatePolicyResult{}, err
		}
		logger.Info("policy create replayed",
			"event", "insurance_policy_create_replayed",
			"module", moduleName,
			"layer", "application",
			"policy_id", policy.PolicyID,
		)
		return CreatePolicyResult{Policy: policy, Replayed: true}, nil
	}

	policy, err := entities.NewPolicy(policyID, owner, cmd.Premium, cmd.Coverage, cmd.Conditions, quorum, callerID, now)
	if err == nil {
		err = uc.Policies.CreatePolicy(ctx, policy)
		if err != nil {
			logger.Error("policy create persist failed",
				"event", "insurance_policy_create_persist_failed",
				"module", moduleName,
				"layer", "application",
				"policy_id", policy.PolicyID,
				"error", err.Error(),
			)
		}
	}
	if err != nil {
		guard.release(ctx, logger)
		return CreatePolicyResult{}, err
	}

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventPolicyCreated, "policy_id", policy.PolicyID, now, map[string]any{
			"policy_id":       policy.PolicyID,
			"owner":           policy.Owner,
			"premium":         policy.Premium,
			"coverage":        policy.Coverage,
			"verifier_quorum": policy.VerifierQuorum,
			"created_by":      policy.CreatedBy,
		})
	logger.Info("policy created",
		"event", "insurance_policy_created",
		"module", moduleName,
		"layer", "application",
		"policy_id", policy.PolicyID,
		"owner", policy.Owner,
		"premium", policy.Premium,
		"coverage", policy.Coverage,
		"verifier_quorum", policy.VerifierQuorum,
	)
	return CreatePolicyResult{Policy: policy}, nil
}
