package commands

import (
	"context"
	"log/slog"
	"strings"

	application "commonpool/contexts/finance-core/mutual-insurance/application"
	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/domain/services"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
	contractsv1 "commonpool/contracts/gen/events/v1"
)

type PayClaimCommand struct {
	ClaimID  string
	PoolID   string
	CallerID string
}

type PayClaimResult struct {
	Claim entities.Claim
	Pool  entities.Pool
}

// PayClaimUseCase settles a verified claim from a pool. The repository holds
// the claim guard, then the pool guard; the transfer runs inside that
// section and the bookkeeping commits only after it succeeds.
type PayClaimUseCase struct {
	Settlements ports.SettlementRepository
	Transfers   ports.FundsTransfer
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func (uc PayClaimUseCase) Execute(ctx context.Context, cmd PayClaimCommand) (PayClaimResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	claimID := strings.TrimSpace(cmd.ClaimID)
	poolID := strings.TrimSpace(cmd.PoolID)
	if claimID == "" || poolID == "" {
		return PayClaimResult{}, domainerrors.ErrInvalidInput
	}

	now := resolveNow(uc.Clock)
	reference := services.SettlementReference(claimID)
	claim, pool, err := uc.Settlements.SettleClaim(ctx, claimID, poolID, func(claim *entities.Claim, pool *entities.Pool) error {
		if err := services.CheckSettlement(*claim, *pool); err != nil {
			return err
		}
		if err := uc.Transfers.Transfer(ctx, ports.TransferRequest{
			From:      pool.CustodyAccount(),
			To:        claim.Claimant,
			Amount:    claim.Amount,
			Reference: reference,
		}); err != nil {
			return err
		}
		return services.ApplySettlement(claim, pool, now)
	})
	if err != nil {
		logger.Warn("claim settlement rejected",
			"event", "insurance_claim_settlement_rejected",
			"module", moduleName,
			"layer", "application",
			"claim_id", claimID,
			"pool_id", poolID,
			"caller_id", strings.TrimSpace(cmd.CallerID),
			"error", err.Error(),
		)
		return PayClaimResult{}, err
	}

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventClaimPaid, "claim_id", claim.ClaimID, now, map[string]any{
			"claim_id":   claim.ClaimID,
			"policy_id":  claim.PolicyID,
			"pool_id":    pool.PoolID,
			"claimant":   claim.Claimant,
			"amount":     claim.Amount,
			"pool_total": pool.TotalAmount,
			"reference":  reference,
		})
	logger.Info("claim settled",
		"event", "insurance_claim_settled",
		"module", moduleName,
		"layer", "application",
		"claim_id", claim.ClaimID,
		"pool_id", pool.PoolID,
		"claimant", claim.Claimant,
		"amount", claim.Amount,
		"pool_total", pool.TotalAmount,
	)
	return PayClaimResult{Claim: claim, Pool: pool}, nil
}
