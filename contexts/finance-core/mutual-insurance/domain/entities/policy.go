package entities

import (
	"strings"
	"time"

	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
)

// DefaultVerifierQuorum is the distinct-verifier count that moves a claim to
// verified when a policy does not set its own quorum.
const DefaultVerifierQuorum = 2

type Policy struct {
	PolicyID       string
	Owner          string
	Premium        int64
	Coverage       int64
	Conditions     []byte
	Active         bool
	VerifierQuorum int
	PremiumsPaid   int
	LastPremiumAt  *time.Time
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeactivatedAt  *time.Time
}

// NewPolicy validates issuance input. Premium, coverage, conditions and
// quorum are fixed from here on.
func NewPolicy(
	policyID string,
	owner string,
	premium int64,
	coverage int64,
	conditions []byte,
	quorum int,
	createdBy string,
	now time.Time,
) (Policy, error) {
	if strings.TrimSpace(policyID) == "" ||
		strings.TrimSpace(owner) == "" ||
		strings.TrimSpace(createdBy) == "" {
		return Policy{}, domainerrors.ErrInvalidInput
	}
	if premium <= 0 || coverage <= 0 {
		return Policy{}, domainerrors.ErrInvalidInput
	}
	if quorum == 0 {
		quorum = DefaultVerifierQuorum
	}
	if quorum < 1 {
		return Policy{}, domainerrors.ErrInvalidInput
	}

	return Policy{
		PolicyID:       policyID,
		Owner:          strings.TrimSpace(owner),
		Premium:        premium,
		Coverage:       coverage,
		Conditions:     append([]byte(nil), conditions...),
		Active:         true,
		VerifierQuorum: quorum,
		CreatedBy:      strings.TrimSpace(createdBy),
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}, nil
}

// CheckPremium verifies a payment may be accepted. Payment must equal the
// premium exactly.
func (p Policy) CheckPremium(payment int64) error {
	if !p.Active {
		return domainerrors.ErrPolicyInactive
	}
	if payment != p.Premium {
		return domainerrors.ErrPremiumMismatch
	}
	return nil
}

func (p *Policy) RecordPremium(now time.Time) {
	at := now.UTC()
	p.PremiumsPaid++
	p.LastPremiumAt = &at
	p.UpdatedAt = at
}

func (p *Policy) Deactivate(now time.Time) error {
	if !p.Active {
		return domainerrors.ErrPolicyInactive
	}
	at := now.UTC()
	p.Active = false
	p.DeactivatedAt = &at
	p.UpdatedAt = at
	return nil
}

// CheckClaimable validates a new claim amount against this policy.
func (p Policy) CheckClaimable(amount int64) error {
	if !p.Active {
		return domainerrors.ErrPolicyInactive
	}
	if amount <= 0 {
		return domainerrors.ErrInvalidInput
	}
	if amount > p.Coverage {
		return domainerrors.ErrCoverageExceeded
	}
	return nil
}

func (p Policy) Clone() Policy {
	out := p
	out.Conditions = append([]byte(nil), p.Conditions...)
	if p.LastPremiumAt != nil {
		at := *p.LastPremiumAt
		out.LastPremiumAt = &at
	}
	if p.DeactivatedAt != nil {
		at := *p.DeactivatedAt
		out.DeactivatedAt = &at
	}
	return out
}
