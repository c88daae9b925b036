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

type WithdrawCommand struct {
	PoolID   string
	CallerID string
	Amount   int64
}

// WithdrawUseCase returns a staker's own contribution. The balance checks,
// the transfer out of pool custody and both decrements form one unit under
// the pool guard.
type WithdrawUseCase struct {
	Pools     ports.PoolRepository
	Transfers ports.FundsTransfer
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc WithdrawUseCase) Execute(ctx context.Context, cmd WithdrawCommand) (PoolAccountResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	poolID := strings.TrimSpace(cmd.PoolID)
	callerID := strings.TrimSpace(cmd.CallerID)
	if poolID == "" || callerID == "" || cmd.Amount <= 0 || entities.IsCustodyAccount(callerID) {
		return PoolAccountResult{}, domainerrors.ErrInvalidInput
	}
	reference, err := newReference(ctx, uc.IDGen, "pool-withdraw")
	if err != nil {
		return PoolAccountResult{}, err
	}

	now := resolveNow(uc.Clock)
	pool, err := uc.Pools.UpdatePool(ctx, poolID, func(pool *entities.Pool) error {
		if err := pool.CheckWithdraw(callerID, cmd.Amount); err != nil {
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
		return pool.Withdraw(callerID, cmd.Amount, now)
	})
	if err != nil {
		logger.Warn("pool withdrawal rejected",
			"event", "insurance_pool_withdraw_rejected",
			"module", moduleName,
			"layer", "application",
			"pool_id", poolID,
			"caller_id", callerID,
			"amount", cmd.Amount,
			"error", err.Error(),
		)
		return PoolAccountResult{}, err
	}
	account, _ := pool.Account(callerID)

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventPoolWithdrawn, "pool_id", pool.PoolID, now, map[string]any{
			"pool_id":         pool.PoolID,
			"staker_id":       callerID,
			"amount":          cmd.Amount,
			"account_balance": account.Balance,
			"pool_total":      pool.TotalAmount,
			"reference":       reference,
		})
	logger.Info("pool withdrawal recorded",
		"event", "insurance_pool_withdrawn",
		"module", moduleName,
		"layer", "application",
		"pool_id", pool.PoolID,
		"caller_id", callerID,
		"amount", cmd.Amount,
		"pool_total", pool.TotalAmount,
	)
	return PoolAccountResult{Pool: pool, Account: account}, nil
}
