package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "commonpool/contexts/finance-core/mutual-insurance/application"
	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
	contractsv1 "commonpool/contracts/gen/events/v1"
)

type CreateClaimCommand struct {
	CallerID       string
	IdempotencyKey string
	PolicyID       string
	Claimant       string
	Amount         int64
}

type CreateClaimResult struct {
	Claim    entities.Claim
	Replayed bool
}

// CreateClaimUseCase files a claim in the filed state. The caller must be the
// claimant or an Admin acting on the claimant's behalf.
type CreateClaimUseCase struct {
	Policies       ports.PolicyRepository
	Claims         ports.ClaimRepository
	Authorizer     ports.Authorizer
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (uc CreateClaimUseCase) Execute(ctx context.Context, cmd CreateClaimCommand) (CreateClaimResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	callerID := strings.TrimSpace(cmd.CallerID)
	claimant := strings.TrimSpace(cmd.Claimant)
	policyID := strings.TrimSpace(cmd.PolicyID)
	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	if claimant == "" {
		claimant = callerID
	}

	if callerID == "" || policyID == "" || cmd.Amount <= 0 || entities.IsCustodyAccount(claimant) {
		logger.Warn("claim create validation failed",
			"event", "insurance_claim_create_validation_failed",
			"module", moduleName,
			"layer", "application",
			"caller_id", callerID,
			"policy_id", policyID,
		)
		return CreateClaimResult{}, domainerrors.ErrInvalidInput
	}
	if claimant != callerID {
		if err := requireRole(ctx, uc.Authorizer, callerID, ports.RoleAdmin); err != nil {
			logger.Warn("claim create on behalf rejected",
				"event", "insurance_claim_create_rejected",
				"module", moduleName,
				"layer", "application",
				"caller_id", callerID,
				"claimant", claimant,
				"error", err.Error(),
			)
			return CreateClaimResult{}, err
		}
	}

	now := resolveNow(uc.Clock)
	requestHash := hashPayload(map[string]any{
		"op":        "create_claim",
		"caller_id": callerID,
		"claimant":  claimant,
		"policy_id": policyID,
		"amount":    cmd.Amount,
	})
	claimID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateClaimResult{}, err
	}
	guard, replayID, err := reserveIdempotency(ctx, uc.Idempotency, idempotencyKey, requestHash, claimID, uc.IdempotencyTTL, now)
	if err != nil {
		return CreateClaimResult{}, err
	}
	if replayID != "" {
		claim, err := uc.Claims.GetClaim(ctx, replayID)
		if errors.Is(err, domainerrors.ErrClaimNotFound) {
			return CreateClaimResult{}, domainerrors.ErrIdempotencyInProgress
		}
		if err != nil {
			return CreateClaimResult{}, err
		}
		logger.Info("claim create replayed",
			"event", "insurance_claim_create_replayed",
			"module", moduleName,
			"layer", "application",
			"claim_id", claim.ClaimID,
		)
		return CreateClaimResult{Claim: claim, Replayed: true}, nil
	}

	claim, err := uc.create(ctx, claimID, policyID, claimant, callerID, cmd.Amount, now)
	if err != nil {
		guard.release(ctx, logger)
		return CreateClaimResult{}, err
	}

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventClaimCreated, "claim_id", claim.ClaimID, now, map[string]any{
			"claim_id":  claim.ClaimID,
			"policy_id": claim.PolicyID,
			"claimant":  claim.Claimant,
			"amount":    claim.Amount,
			"quorum":    claim.Quorum,
			"filed_by":  claim.FiledBy,
		})
	logger.Info("claim created",
		"event", "insurance_claim_created",
		"module", moduleName,
		"layer", "application",
		"claim_id", claim.ClaimID,
		"policy_id", claim.PolicyID,
		"claimant", claim.Claimant,
		"amount", claim.Amount,
	)
	return CreateClaimResult{Claim: claim}, nil
}

func (uc CreateClaimUseCase) create(
	ctx context.Context,
	claimID string,
	policyID string,
	claimant string,
	callerID string,
	amount int64,
	now time.Time,
) (entities.Claim, error) {
	logger := application.ResolveLogger(uc.Logger)
	policy, err := uc.Policies.GetPolicy(ctx, policyID)
	if err != nil {
		return entities.Claim{}, err
	}
	claim, err := entities.NewClaim(claimID, policy, claimant, amount, callerID, now)
	if err != nil {
		logger.Warn("claim create rejected by policy",
			"event", "insurance_claim_create_policy_rejected",
			"module", moduleName,
			"layer", "application",
			"policy_id", policyID,
			"claimant", claimant,
			"amount", amount,
			"error", err.Error(),
		)
		return entities.Claim{}, err
	}
	if err := uc.Claims.CreateClaim(ctx, claim); err != nil {
		logger.Error("claim create persist failed",
			"event", "insurance_claim_create_persist_failed",
			"module", moduleName,
			"layer", "application",
			"claim_id", claim.ClaimID,
			"error", err.Error(),
		)
		return entities.Claim{}, err
	}
	return claim, nil
}
