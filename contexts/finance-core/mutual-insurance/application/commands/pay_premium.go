package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "commonpool/contexts/finance-core/mutual-insurance/application"
	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
	contractsv1 "commonpool/contracts/gen/events/v1"
)

type PayPremiumCommand struct {
	PolicyID string
	PayerID  string
	Payment  int64
}

// PayPremiumUseCase routes a premium from the payer to the policy owner. The
// policy guard is held across the check, the transfer and the commit so a
// concurrent deactivation cannot interleave.
type PayPremiumUseCase struct {
	Policies  ports.PolicyRepository
	Transfers ports.FundsTransfer
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc PayPremiumUseCase) Execute(ctx context.Context, cmd PayPremiumCommand) (entities.Policy, error) {
	logger := application.ResolveLogger(uc.Logger)
	policyID := strings.TrimSpace(cmd.PolicyID)
	payerID := strings.TrimSpace(cmd.PayerID)
	if policyID == "" || payerID == "" || cmd.Payment <= 0 || entities.IsCustodyAccount(payerID) {
		return entities.Policy{}, domainerrors.ErrInvalidInput
	}

	now := resolveNow(uc.Clock)
	policy, err := uc.Policies.UpdatePolicy(ctx, policyID, func(policy *entities.Policy) error {
		if err := policy.CheckPremium(cmd.Payment); err != nil {
			return err
		}
		// The owner paying its own policy moves no funds.
		if payerID == policy.Owner {
			policy.RecordPremium(now)
			return nil
		}
		// Installment and payer make a retry after a failed commit land on
		// the same custody reference, and keep other payers off it.
		reference := fmt.Sprintf("policy-premium:%s:%d:%s", policy.PolicyID, policy.PremiumsPaid+1, payerID)
		if err := uc.Transfers.Transfer(ctx, ports.TransferRequest{
			From:      payerID,
			To:        policy.Owner,
			Amount:    cmd.Payment,
			Reference: reference,
		}); err != nil {
			return err
		}
		policy.RecordPremium(now)
		return nil
	})
	if err != nil {
		logger.Warn("premium payment rejected",
			"event", "insurance_premium_payment_rejected",
			"module", moduleName,
			"layer", "application",
			"policy_id", policyID,
			"payer_id", payerID,
			"payment", cmd.Payment,
			"error", err.Error(),
		)
		return entities.Policy{}, err
	}

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventPolicyPremiumPaid, "policy_id", policy.PolicyID, now, map[string]any{
			"policy_id":     policy.PolicyID,
			"payer_id":      payerID,
			"owner":         policy.Owner,
			"amount":        cmd.Payment,
			"premiums_paid": policy.PremiumsPaid,
		})
	logger.Info("premium paid",
		"event", "insurance_premium_paid",
		"module", moduleName,
		"layer", "application",
		"policy_id", policy.PolicyID,
		"payer_id", payerID,
		"amount", cmd.Payment,
		"premiums_paid", policy.PremiumsPaid,
	)
	return policy, nil
}
