package commands

import (
	"context"
	"log/slog"
	"strings"

	application "commonpool/contexts/finance-core/mutual-insurance/application"
	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
	contractsv1 "commonpool/contracts/gen/events/v1"
)

type DeactivatePolicyCommand struct {
	PolicyID string
	CallerID string
}

// DeactivatePolicyUseCase terminally deactivates a policy. Admin only.
type DeactivatePolicyUseCase struct {
	Policies   ports.PolicyRepository
	Authorizer ports.Authorizer
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc DeactivatePolicyUseCase) Execute(ctx context.Context, cmd DeactivatePolicyCommand) (entities.Policy, error) {
	logger := application.ResolveLogger(uc.Logger)
	policyID := strings.TrimSpace(cmd.PolicyID)
	callerID := strings.TrimSpace(cmd.CallerID)
	if policyID == "" || callerID == "" {
		return entities.Policy{}, domainerrors.ErrInvalidInput
	}
	if err := requireRole(ctx, uc.Authorizer, callerID, ports.RoleAdmin); err != nil {
		logger.Warn("policy deactivation rejected",
			"event", "insurance_policy_deactivate_rejected",
			"module", moduleName,
			"layer", "application",
			"policy_id", policyID,
			"caller_id", callerID,
			"error", err.Error(),
		)
		return entities.Policy{}, err
	}

	now := resolveNow(uc.Clock)
	policy, err := uc.Policies.UpdatePolicy(ctx, policyID, func(policy *entities.Policy) error {
		return policy.Deactivate(now)
	})
	if err != nil {
		return entities.Policy{}, err
	}

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventPolicyDeactivated, "policy_id", policy.PolicyID, now, map[string]any{
			"policy_id":      policy.PolicyID,
			"deactivated_by": callerID,
		})
	logger.Info("policy deactivated",
		"event", "insurance_policy_deactivated",
		"module", moduleName,
		"layer", "application",
		"policy_id", policy.PolicyID,
		"caller_id", callerID,
	)
	return policy, nil
}
