package services

import (
	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
)

// ResolveQuorum picks the verifier quorum for a new policy: the requested
// value when set, otherwise the deployment default, otherwise
// entities.DefaultVerifierQuorum.
func ResolveQuorum(requested int, configured int) (int, error) {
	if requested < 0 {
		return 0, domainerrors.ErrInvalidInput
	}
	if requested > 0 {
		return requested, nil
	}
	if configured > 0 {
		return configured, nil
	}
	return entities.DefaultVerifierQuorum, nil
}

// QuorumProgress summarizes how far a claim is from verification.
type QuorumProgress struct {
	VerifierCount int
	Quorum        int
	Remaining     int
	Reached       bool
}

func Progress(claim entities.Claim) QuorumProgress {
	remaining := claim.Quorum - len(claim.Verifiers)
	if remaining < 0 {
		remaining = 0
	}
	return QuorumProgress{
		VerifierCount: len(claim.Verifiers),
		Quorum:        claim.Quorum,
		Remaining:     remaining,
		Reached:       claim.Verified,
	}
}
