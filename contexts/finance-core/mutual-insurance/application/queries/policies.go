package queries

import (
	"context"
	"strings"

	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
)

type PolicyQueryUseCase struct {
	Policies ports.PolicyRepository
	Claims   ports.ClaimRepository
}

func (uc PolicyQueryUseCase) GetPolicy(ctx context.Context, policyID string) (entities.Policy, error) {
	policyID = strings.TrimSpace(policyID)
	if policyID == "" {
		return entities.Policy{}, domainerrors.ErrInvalidInput
	}
	return uc.Policies.GetPolicy(ctx, policyID)
}

func (uc PolicyQueryUseCase) GetClaim(ctx context.Context, claimID string) (entities.Claim, error) {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return entities.Claim{}, domainerrors.ErrInvalidInput
	}
	return uc.Claims.GetClaim(ctx, claimID)
}

// ListClaims returns a policy's claims oldest first. Unknown policies fail
// with ErrPolicyNotFound rather than an empty list.
func (uc PolicyQueryUseCase) ListClaims(ctx context.Context, policyID string) ([]entities.Claim, error) {
	policyID = strings.TrimSpace(policyID)
	if policyID == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	if _, err := uc.Policies.GetPolicy(ctx, policyID); err != nil {
		return nil, err
	}
	return uc.Claims.ListClaimsByPolicy(ctx, policyID)
}
