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

type StakeCommand struct {
	PoolID   string
	StakerID string
	Amount   int64
}

type PoolAccountResult struct {
	Pool    entities.Pool
	Account entities.Account
}

// StakeUseCase custodies the staker's funds into the pool and credits the
// staker's account under the pool guard.
type StakeUseCase struct {
	Pools     ports.PoolRepository
	Transfers ports.FundsTransfer
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc StakeUseCase) Execute(ctx context.Context, cmd StakeCommand) (PoolAccountResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	poolID := strings.TrimSpace(cmd.PoolID)
	stakerID := strings.TrimSpace(cmd.StakerID)
	if poolID == "" || stakerID == "" || cmd.Amount <= 0 || entities.IsCustodyAccount(stakerID) {
		return PoolAccountResult{}, domainerrors.ErrInvalidInput
	}
	reference, err := newReference(ctx, uc.IDGen, "pool-stake")
	if err != nil {
		return PoolAccountResult{}, err
	}

	now := resolveNow(uc.Clock)
	pool, err := uc.Pools.UpdatePool(ctx, poolID, func(pool *entities.Pool) error {
		if err := pool.CheckStake(stakerID, cmd.Amount); err != nil {
			return err
		}
		if err := uc.Transfers.Transfer(ctx, ports.TransferRequest{
			From:      stakerID,
			To:        pool.CustodyAccount(),
			Amount:    cmd.Amount,
			Reference: reference,
		}); err != nil {
			return err
		}
		return pool.Stake(stakerID, cmd.Amount, now)
	})
	if err != nil {
		logger.Warn("pool stake rejected",
			"event", "insurance_pool_stake_rejected",
			"module", moduleName,
			"layer", "application",
			"pool_id", poolID,
			"staker_id", stakerID,
			"amount", cmd.Amount,
			"error", err.Error(),
		)
		return PoolAccountResult{}, err
	}
	account, _ := pool.Account(stakerID)

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventPoolStaked, "pool_id", pool.PoolID, now, map[string]any{
			"pool_id":         pool.PoolID,
			"staker_id":       stakerID,
			"amount":          cmd.Amount,
			"account_balance": account.Balance,
			"pool_total":      pool.TotalAmount,
			"reference":       reference,
		})
	logger.Info("pool stake recorded",
		"event", "insurance_pool_staked",
		"module", moduleName,
		"layer", "application",
		"pool_id", pool.PoolID,
		"staker_id", stakerID,
		"amount", cmd.Amount,
		"pool_total", pool.TotalAmount,
	)
	return PoolAccountResult{Pool: pool, Account: account}, nil
}
