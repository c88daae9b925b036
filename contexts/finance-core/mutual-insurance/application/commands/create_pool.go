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

type CreatePoolCommand struct {
	CallerID string
}

type CreatePoolUseCase struct {
	Pools      ports.PoolRepository
	Authorizer ports.Authorizer
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc CreatePoolUseCase) Execute(ctx context.Context, cmd CreatePoolCommand) (entities.Pool, error) {
	logger := application.ResolveLogger(uc.Logger)
	callerID := strings.TrimSpace(cmd.CallerID)
	if callerID == "" {
		return entities.Pool{}, domainerrors.ErrInvalidInput
	}
	if err := requireRole(ctx, uc.Authorizer, callerID, ports.RoleAdmin); err != nil {
		logger.Warn("pool create rejected",
			"event", "insurance_pool_create_rejected",
			"module", moduleName,
			"layer", "application",
			"caller_id", callerID,
			"error", err.Error(),
		)
		return entities.Pool{}, err
	}

	poolID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Pool{}, err
	}
	now := resolveNow(uc.Clock)
	pool, err := entities.NewPool(poolID, callerID, now)
	if err != nil {
		return entities.Pool{}, err
	}
	if err := uc.Pools.CreatePool(ctx, pool); err != nil {
		logger.Error("pool create persist failed",
			"event", "insurance_pool_create_persist_failed",
			"module", moduleName,
			"layer", "application",
			"pool_id", pool.PoolID,
			"error", err.Error(),
		)
		return entities.Pool{}, err
	}

	notifier{outbox: uc.Outbox, idGen: uc.IDGen, logger: logger}.emit(ctx,
		contractsv1.EventPoolCreated, "pool_id", pool.PoolID, now, map[string]any{
			"pool_id":         pool.PoolID,
			"custody_account": pool.CustodyAccount(),
			"created_by":      pool.CreatedBy,
		})
	logger.Info("pool created",
		"event", "insurance_pool_created",
		"module", moduleName,
		"layer", "application",
		"pool_id", pool.PoolID,
		"caller_id", callerID,
	)
	return pool, nil
}
