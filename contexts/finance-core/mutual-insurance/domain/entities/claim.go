package entities

import (
	"strings"
	"time"

	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
)

type ClaimStatus string

// Claims only move forward: filed, verified, paid.
const (
	ClaimStatusFiled    ClaimStatus = "filed"
	ClaimStatusVerified ClaimStatus = "verified"
	ClaimStatusPaid     ClaimStatus = "paid"
)

type Claim struct {
	ClaimID    string
	PolicyID   string
	Claimant   string
	Verifiers  []string
	Amount     int64
	Quorum     int
	Status     ClaimStatus
	Verified   bool
	Paid       bool
	FiledBy    string
	CreatedAt  time.Time
	VerifiedAt *time.Time
	PaidAt     *time.Time
	UpdatedAt  time.Time
}

func NewClaim(
	claimID string,
	policy Policy,
	claimant string,
	amount int64,
	filedBy string,
	now time.Time,
) (Claim, error) {
	if strings.TrimSpace(claimID) == "" ||
		strings.TrimSpace(claimant) == "" ||
		strings.TrimSpace(filedBy) == "" {
		return Claim{}, domainerrors.ErrInvalidInput
	}
	if err := policy.CheckClaimable(amount); err != nil {
		return Claim{}, err
	}
	quorum := policy.VerifierQuorum
	if quorum < 1 {
		quorum = DefaultVerifierQuorum
	}

	return Claim{
		ClaimID:   claimID,
		PolicyID:  policy.PolicyID,
		Claimant:  strings.TrimSpace(claimant),
		Verifiers: []string{},
		Amount:    amount,
		Quorum:    quorum,
		Status:    ClaimStatusFiled,
		FiledBy:   strings.TrimSpace(filedBy),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

func (c Claim) HasVerifier(verifier string) bool {
	for _, existing := range c.Verifiers {
		if existing == verifier {
			return true
		}
	}
	return false
}

// CheckVerifier runs the consensus preconditions for one attestation without
// mutating the claim.
func (c Claim) CheckVerifier(verifier string) error {
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return domainerrors.ErrInvalidInput
	}
	if verifier == c.Claimant {
		return domainerrors.ErrSelfVerificationForbidden
	}
	if c.HasVerifier(verifier) {
		return domainerrors.ErrDuplicateVerifier
	}
	if c.Status != ClaimStatusFiled {
		return domainerrors.ErrClaimAlreadyVerified
	}
	return nil
}

// AddVerifier appends an attestation and reports whether this call moved the
// claim to verified.
func (c *Claim) AddVerifier(verifier string, now time.Time) (bool, error) {
	if err := c.CheckVerifier(verifier); err != nil {
		return false, err
	}
	at := now.UTC()
	c.Verifiers = append(c.Verifiers, strings.TrimSpace(verifier))
	c.UpdatedAt = at
	if len(c.Verifiers) >= c.Quorum {
		c.Status = ClaimStatusVerified
		c.Verified = true
		c.VerifiedAt = &at
		return true, nil
	}
	return false, nil
}

// CheckPayable reports whether settlement may start for this claim.
func (c Claim) CheckPayable() error {
	if !c.Verified {
		return domainerrors.ErrClaimNotVerified
	}
	if c.Paid {
		return domainerrors.ErrClaimAlreadyPaid
	}
	return nil
}

func (c *Claim) MarkPaid(now time.Time) error {
	if err := c.CheckPayable(); err != nil {
		return err
	}
	at := now.UTC()
	c.Paid = true
	c.Status = ClaimStatusPaid
	c.PaidAt = &at
	c.UpdatedAt = at
	return nil
}

func (c Claim) Clone() Claim {
	out := c
	out.Verifiers = append([]string{}, c.Verifiers...)
	if c.VerifiedAt != nil {
		at := *c.VerifiedAt
		out.VerifiedAt = &at
	}
	if c.PaidAt != nil {
		at := *c.PaidAt
		out.PaidAt = &at
	}
	return out
}
