package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "commonpool/contexts/finance-core/mutual-insurance/application"
	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/domain/services"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
	contractsv1 "commonpool/contracts/gen/events/v1"
)

type VerifyClaimCommand struct {
	ClaimID    string
	VerifierID string
}

type VerifyClaimResult struct {
	Claim entities.Claim
	// Transitioned is true only for the attestation that reached quorum.
	Transitioned bool
}

// VerifyClaimUseCase records one verifier attestation. The membership check,
// the condition predicate and the append all run under the claim guard so
// concurrent attestations serialize.
type VerifyClaimUseCase struct {
	Policies            ports.PolicyRepository
	Claims              ports.ClaimRepository
	Authorizer          ports.Authorizer
	Conditions          services.ConditionPredicate
	RequireVerifierRole bool
	Outbox              ports.OutboxWriter
	Clock               ports.Clock
	IDGen               ports.IDGenerator
	Logger              *slog.Logger
}

func (uc VerifyClaimUseCase) Execute(ctx context.Context, cmd VerifyClaimCommand) (VerifyClaimResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	claimID := strings.TrimSpace(cmd.ClaimID)
	verifierID := strings.TrimSpace(cmd.VerifierID)
	if claimID == "" || verifierID == "" {
		return VerifyClaimResult{}, domainerrors.ErrInvalidInput
	}
	if uc.RequireVerifierRole {
		if err := requireRole(ctx, uc.Authorizer, verifierID, ports.RoleVerifier); err != nil {
			logger.Warn("claim verification rejected",
				"event", "insurance_claim_verify_role_rejected",
				"module", moduleName,
				"layer", "application",
				"claim_id", claimID,
				"verifier_id", verifierID,
				"error", err.Error(),
			)
			return VerifyClaimResult{}, err
		}
	}

	// Policy terms never change after issuance, so reading them outside the
	// claim guard cannot go stale.
	snapshot, err := uc.Claims.GetClaim(ctx, claimID)
	if err != nil {
		return VerifyClaimResult{}, err
	}
	policy, err := uc.Policies.GetPolicy(ctx, snapshot.PolicyID)
	if err != nil {
		return VerifyClaimResult{}, err
	}

	predicate := services.ResolvePredicate(uc.Conditions)
	now := resolveNow(uc.Clock)
	transitioned := false
	claim, err := uc.Claims.UpdateClaim(ctx, claimID, func(claim *entities.Claim) error {
		if err := claim.CheckVerifier(verifierID); err != nil {
			return err
		}
		met, err := predicate.ConditionsMet(ctx, policy, *claim, verifierID)
		if err != nil {
			return fmt.Errorf("evaluate policy conditions: %w", err)
		}
		if !met {
			return domainerrors.ErrConditionsNotMet
		}
		transitioned, err = claim.AddVerifier(verifierID, now)
		return err
	})
	if err != nil {
		logger.Warn("claim verification rejected",
			"event", "insurance_claim_verify_rejected",
			"module", moduleName,
			"layer", "application",
			"claim_id", claimID,
			"verifier_id", verifierID,
			"error", err.Error(),
		)
		return VerifyClaimResult{}, err
	}

	progress := services.Progress(claim)
	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventClaimVerified, "claim_id", claim.ClaimID, now, map[string]any{
			"claim_id":       claim.ClaimID,
			"policy_id":      claim.PolicyID,
			"verifier_id":    verifierID,
			"verifier_count": progress.VerifierCount,
			"quorum":         progress.Quorum,
			"verified":       claim.Verified,
		})
	logger.Info("claim verification accepted",
		"event", "insurance_claim_verification_accepted",
		"module", moduleName,
		"layer", "application",
		"claim_id", claim.ClaimID,
		"verifier_id", verifierID,
		"verifier_count", progress.VerifierCount,
		"quorum", progress.Quorum,
		"verified", claim.Verified,
	)
	return VerifyClaimResult{Claim: claim, Transitioned: transitioned}, nil
}
