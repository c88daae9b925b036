package workers

import (
	"context"
	"log/slog"
	"time"

	application "commonpool/contexts/finance-core/mutual-insurance/application"
	"commonpool/contexts/finance-core/mutual-insurance/application/queries"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
)

// PoolReconciler re-checks the conservation identity of every pool and
// reports drift. It never repairs state.
type PoolReconciler struct {
	Pools    ports.PoolRepository
	Observer ports.DriftObserver
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (r PoolReconciler) RunOnce(ctx context.Context) ([]ports.ReconciliationReport, error) {
	logger := application.ResolveLogger(r.Logger)
	pools, err := r.Pools.ListPools(ctx)
	if err != nil {
		logger.Error("insurance pool list failed",
			"event", "insurance_pool_reconcile_list_failed",
			"module", moduleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return nil, err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}
	reports := make([]ports.ReconciliationReport, 0, len(pools))
	unbalanced := 0
	for _, pool := range pools {
		report := queries.BuildReconciliationReport(pool, now)
		if r.Observer != nil {
			r.Observer.ObserveReconciliation(report)
		}
		if !report.Balanced {
			unbalanced++
			logger.Error("insurance pool out of balance",
				"event", "insurance_pool_drift_detected",
				"module", moduleName,
				"layer", "worker",
				"pool_id", report.PoolID,
				"total_amount", report.TotalAmount,
				"accounts_total", report.AccountsTotal,
				"paid_out", report.PaidOut,
				"admin_withdrawn", report.AdminWithdrawn,
				"drift", report.Drift,
			)
		}
		reports = append(reports, report)
	}

	logger.Debug("insurance pool reconciliation completed",
		"event", "insurance_pool_reconcile_completed",
		"module", moduleName,
		"layer", "worker",
		"pool_count", len(reports),
		"unbalanced_count", unbalanced,
	)
	return reports, nil
}
