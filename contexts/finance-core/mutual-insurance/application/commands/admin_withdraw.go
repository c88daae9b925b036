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

type AdminWithdrawCommand struct {
	PoolID   string
	CallerID string
	Amount   int64
}

// AdminWithdrawUseCase is the operational drain of pool custody. It never
// touches staker accounts and is tracked separately from settlements.
type AdminWithdrawUseCase struct {
	Pools      ports.PoolRepository
	Authorizer ports.Authorizer
	Transfers  ports.FundsTransfer
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc AdminWithdrawUseCase) Execute(ctx context.Context, cmd AdminWithdrawCommand) (entities.Pool, error) {
	logger := application.ResolveLogger(uc.Logger)
	poolID := strings.TrimSpace(cmd.PoolID)
	callerID := strings.TrimSpace(cmd.CallerID)
	if poolID == "" || callerID == "" || cmd.Amount <= 0 || entities.IsCustodyAccount(callerID) {
		return entities.Pool{}, domainerrors.ErrInvalidInput
	}
	if err := requireRole(ctx, uc.Authorizer, callerID, ports.RoleAdmin); err != nil {
		logger.Warn("admin pool withdrawal rejected",
			"event", "insurance_pool_admin_withdraw_unauthorized",
			"module", moduleName,
			"layer", "application",
			"pool_id", poolID,
			"caller_id", callerID,
			"error", err.Error(),
		)
		return entities.Pool{}, err
	}
	reference, err := newReference(ctx, uc.IDGen, "pool-admin-withdraw")
	if err != nil {
		return entities.Pool{}, err
	}

	now := resolveNow(uc.Clock)
	pool, err := uc.Pools.UpdatePool(ctx, poolID, func(pool *entities.Pool) error {
		if err := pool.CheckAdminWithdraw(cmd.Amount); err != nil {
			return err
		}
		if err := uc.Transfers.Transfer(ctx, ports.TransferRequest{
			From:      pool.CustodyAccount(),
			To:        callerID,
			Amount:    cmd.Amount,
			Reference: reference,
		}); err != nil {
			return err
		}
		return pool.AdminWithdraw(cmd.Amount, now)
	})
	if err != nil {
		logger.Warn("admin pool withdrawal rejected",
			"event", "insurance_pool_admin_withdraw_rejected",
			"module", moduleName,
			"layer", "application",
			"pool_id", poolID,
			"caller_id", callerID,
			"amount", cmd.Amount,
			"error", err.Error(),
		)
		return entities.Pool{}, err
	}

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventPoolAdminWithdrawn, "pool_id", pool.PoolID, now, map[string]any{
			"pool_id":         pool.PoolID,
			"admin_id":        callerID,
			"amount":          cmd.Amount,
			"pool_total":      pool.TotalAmount,
			"admin_withdrawn": pool.AdminWithdrawn,
			"reference":       reference,
		})
	logger.Warn("admin pool withdrawal executed",
		"event", "insurance_pool_admin_withdrawn",
		"module", moduleName,
		"layer", "application",
		"pool_id", pool.PoolID,
		"caller_id", callerID,
		"amount", cmd.Amount,
		"pool_total", pool.TotalAmount,
	)
	return pool, nil
}
