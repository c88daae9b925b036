package entities

import (
	"testing"
	"time"

	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"

	"github.com/stretchr/testify/require"
)

func testPolicy(t *testing.T, quorum int) Policy {
	t.Helper()
	policy, err := NewPolicy("policy-1", "owner-1", 100, 1000, []byte(`{"peril":"flood"}`), quorum, "admin-1", time.Now())
	require.NoError(t, err)
	return policy
}

func TestNewPolicyDefaultsQuorum(t *testing.T) {
	policy := testPolicy(t, 0)
	require.True(t, policy.Active)
	require.Equal(t, DefaultVerifierQuorum, policy.VerifierQuorum)
	require.Equal(t, 0, policy.PremiumsPaid)

	_, err := NewPolicy("policy-2", "owner-1", 0, 1000, nil, 0, "admin-1", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	_, err = NewPolicy("policy-2", "owner-1", 10, 1000, nil, -1, "admin-1", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestPolicyPremiumRequiresExactPayment(t *testing.T) {
	policy := testPolicy(t, 2)
	require.ErrorIs(t, policy.CheckPremium(99), domainerrors.ErrPremiumMismatch)
	require.ErrorIs(t, policy.CheckPremium(101), domainerrors.ErrPremiumMismatch)
	require.NoError(t, policy.CheckPremium(100))

	policy.RecordPremium(time.Now())
	require.Equal(t, 1, policy.PremiumsPaid)
	require.NotNil(t, policy.LastPremiumAt)

	require.NoError(t, policy.Deactivate(time.Now()))
	require.ErrorIs(t, policy.CheckPremium(100), domainerrors.ErrPolicyInactive)
	require.ErrorIs(t, policy.Deactivate(time.Now()), domainerrors.ErrPolicyInactive)
}

func TestNewClaimChecksCoverage(t *testing.T) {
	policy := testPolicy(t, 2)

	_, err := NewClaim("claim-1", policy, "claimant-1", 1001, "claimant-1", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrCoverageExceeded)

	claim, err := NewClaim("claim-1", policy, "claimant-1", 1000, "claimant-1", time.Now())
	require.NoError(t, err)
	require.Equal(t, ClaimStatusFiled, claim.Status)
	require.False(t, claim.Verified)
	require.False(t, claim.Paid)
	require.Empty(t, claim.Verifiers)
	require.Equal(t, 2, claim.Quorum)

	require.NoError(t, policy.Deactivate(time.Now()))
	_, err = NewClaim("claim-2", policy, "claimant-1", 10, "claimant-1", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrPolicyInactive)
}

func TestClaimReachesQuorumOnce(t *testing.T) {
	policy := testPolicy(t, 2)
	claim, err := NewClaim("claim-1", policy, "claimant-1", 500, "claimant-1", time.Now())
	require.NoError(t, err)

	_, err = claim.AddVerifier("claimant-1", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrSelfVerificationForbidden)

	transitioned, err := claim.AddVerifier("verifier-a", time.Now())
	require.NoError(t, err)
	require.False(t, transitioned)
	require.False(t, claim.Verified)

	_, err = claim.AddVerifier("verifier-a", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrDuplicateVerifier)
	require.Len(t, claim.Verifiers, 1)

	transitioned, err = claim.AddVerifier("verifier-b", time.Now())
	require.NoError(t, err)
	require.True(t, transitioned)
	require.True(t, claim.Verified)
	require.Equal(t, ClaimStatusVerified, claim.Status)
	require.NotNil(t, claim.VerifiedAt)

	_, err = claim.AddVerifier("verifier-c", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrClaimAlreadyVerified)
	require.Equal(t, []string{"verifier-a", "verifier-b"}, claim.Verifiers)
}

func TestClaimPaymentIsTerminal(t *testing.T) {
	policy := testPolicy(t, 1)
	claim, err := NewClaim("claim-1", policy, "claimant-1", 500, "claimant-1", time.Now())
	require.NoError(t, err)

	require.ErrorIs(t, claim.MarkPaid(time.Now()), domainerrors.ErrClaimNotVerified)

	_, err = claim.AddVerifier("verifier-a", time.Now())
	require.NoError(t, err)
	require.NoError(t, claim.MarkPaid(time.Now()))
	require.True(t, claim.Paid)
	require.Equal(t, ClaimStatusPaid, claim.Status)
	require.ErrorIs(t, claim.MarkPaid(time.Now()), domainerrors.ErrClaimAlreadyPaid)
}

func TestClaimCloneDetachesVerifiers(t *testing.T) {
	policy := testPolicy(t, 3)
	claim, err := NewClaim("claim-1", policy, "claimant-1", 500, "claimant-1", time.Now())
	require.NoError(t, err)
	_, err = claim.AddVerifier("verifier-a", time.Now())
	require.NoError(t, err)

	clone := claim.Clone()
	clone.Verifiers[0] = "tampered"
	require.Equal(t, "verifier-a", claim.Verifiers[0])
}
