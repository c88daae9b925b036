package errors

import "errors"

// Kind groups domain errors by the invariant family they protect.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindAuthorization      Kind = "authorization"
	KindStateViolation     Kind = "state_violation"
	KindBalanceViolation   Kind = "balance_violation"
	KindConsensusViolation Kind = "consensus_violation"
	KindConflict           Kind = "conflict"
)

// DomainError is a sentinel carrying its kind. Compare with errors.Is.
type DomainError struct {
	kind    Kind
	message string
}

func (e *DomainError) Error() string {
	return e.message
}

func (e *DomainError) Kind() Kind {
	return e.kind
}

func newError(kind Kind, message string) *DomainError {
	return &DomainError{kind: kind, message: message}
}

var (
	ErrInvalidInput = newError(KindValidation, "invalid insurance input")

	ErrPolicyNotFound  = newError(KindNotFound, "policy not found")
	ErrClaimNotFound   = newError(KindNotFound, "claim not found")
	ErrPoolNotFound    = newError(KindNotFound, "pool not found")
	ErrAccountNotFound = newError(KindNotFound, "pool account not found")

	ErrUnauthorized = newError(KindAuthorization, "caller lacks required role")

	ErrPolicyInactive       = newError(KindStateViolation, "policy is inactive")
	ErrPremiumMismatch      = newError(KindStateViolation, "payment does not match policy premium")
	ErrCoverageExceeded     = newError(KindStateViolation, "claim amount exceeds policy coverage")
	ErrClaimAlreadyVerified = newError(KindStateViolation, "claim is no longer accepting verifications")
	ErrClaimNotVerified     = newError(KindStateViolation, "claim is not verified")
	ErrClaimAlreadyPaid     = newError(KindStateViolation, "claim is already paid")
	ErrConditionsNotMet     = newError(KindStateViolation, "policy conditions are not met")

	ErrInsufficientBalance     = newError(KindBalanceViolation, "insufficient account balance")
	ErrInsufficientPoolBalance = newError(KindBalanceViolation, "insufficient pool balance")
	ErrInsufficientFunds       = newError(KindBalanceViolation, "insufficient custody funds")
	ErrAmountOverflow          = newError(KindBalanceViolation, "amount would overflow a balance")

	ErrSelfVerificationForbidden = newError(KindConsensusViolation, "claimant cannot verify own claim")
	ErrDuplicateVerifier         = newError(KindConsensusViolation, "verifier already attested this claim")

	ErrIdempotencyConflict      = newError(KindConflict, "idempotency key reused with different request")
	ErrIdempotencyInProgress    = newError(KindConflict, "request with this idempotency key is still in progress")
	ErrTransferConflict         = newError(KindConflict, "transfer reference already used for a different movement")
	ErrRepositoryInvariantBroke = newError(KindConflict, "repository invariant violated")
)

// KindOf returns the kind of the first DomainError in err's chain, or "" when
// err is not a domain error.
func KindOf(err error) Kind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.kind
	}
	return ""
}
