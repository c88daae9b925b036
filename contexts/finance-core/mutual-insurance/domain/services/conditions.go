package services

import (
	"context"

	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
)

// ConditionPredicate decides whether a verifier attestation satisfies the
// policy's condition descriptor. Deployments plug in their own underwriting
// rule; the module never interprets the descriptor itself.
type ConditionPredicate interface {
	ConditionsMet(ctx context.Context, policy entities.Policy, claim entities.Claim, verifier string) (bool, error)
}

// ConditionPredicateFunc adapts a plain function to ConditionPredicate.
type ConditionPredicateFunc func(ctx context.Context, policy entities.Policy, claim entities.Claim, verifier string) (bool, error)

func (f ConditionPredicateFunc) ConditionsMet(
	ctx context.Context,
	policy entities.Policy,
	claim entities.Claim,
	verifier string,
) (bool, error) {
	return f(ctx, policy, claim, verifier)
}

// AlwaysSatisfied accepts every attestation.
type AlwaysSatisfied struct{}

func (AlwaysSatisfied) ConditionsMet(context.Context, entities.Policy, entities.Claim, string) (bool, error) {
	return true, nil
}

// ResolvePredicate falls back to AlwaysSatisfied when none is configured.
func ResolvePredicate(predicate ConditionPredicate) ConditionPredicate {
	if predicate == nil {
		return AlwaysSatisfied{}
	}
	return predicate
}
