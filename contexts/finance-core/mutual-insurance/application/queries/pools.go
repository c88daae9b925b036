package queries

import (
	"context"
	"strings"
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
)

type PoolQueryUseCase struct {
	Pools ports.PoolRepository
	Clock ports.Clock
}

func (uc PoolQueryUseCase) GetPool(ctx context.Context, poolID string) (entities.Pool, error) {
	poolID = strings.TrimSpace(poolID)
	if poolID == "" {
		return entities.Pool{}, domainerrors.ErrInvalidInput
	}
	return uc.Pools.GetPool(ctx, poolID)
}

func (uc PoolQueryUseCase) GetAccount(ctx context.Context, poolID string, owner string) (entities.Account, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return entities.Account{}, domainerrors.ErrInvalidInput
	}
	pool, err := uc.GetPool(ctx, poolID)
	if err != nil {
		return entities.Account{}, err
	}
	account, ok := pool.Account(owner)
	if !ok {
		return entities.Account{}, domainerrors.ErrAccountNotFound
	}
	return account, nil
}

func (uc PoolQueryUseCase) Reconcile(ctx context.Context, poolID string) (ports.ReconciliationReport, error) {
	pool, err := uc.GetPool(ctx, poolID)
	if err != nil {
		return ports.ReconciliationReport{}, err
	}
	return BuildReconciliationReport(pool, uc.now()), nil
}

func (uc PoolQueryUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

// BuildReconciliationReport checks the pool conservation identity on one
// consistent snapshot.
func BuildReconciliationReport(pool entities.Pool, checkedAt time.Time) ports.ReconciliationReport {
	drift := pool.Drift()
	return ports.ReconciliationReport{
		PoolID:         pool.PoolID,
		TotalAmount:    pool.TotalAmount,
		AccountsTotal:  pool.AccountsTotal(),
		PaidOut:        pool.PaidOut,
		AdminWithdrawn: pool.AdminWithdrawn,
		StakerCount:    len(pool.Stakers),
		Drift:          drift,
		Balanced:       drift == 0 && pool.TotalAmount >= 0,
		CheckedAt:      checkedAt.UTC(),
	}
}
