// Package bridge adapts one bounded context's public surface to another
// context's ports. Contexts never import each other; the runtime wires them
// here.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	custodyerrors "commonpool/contexts/finance-core/custody-ledger/domain/errors"
	custodyports "commonpool/contexts/finance-core/custody-ledger/ports"
	insuranceerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	insuranceports "commonpool/contexts/finance-core/mutual-insurance/ports"
	authzentities "commonpool/contexts/identity-access/authorization-service/domain/entities"
	"commonpool/internal/platform/metrics"
)

const moduleName = "internal/app/bridge"

// RoleChecker is the slice of the authorization module the insurance engine
// needs.
type RoleChecker interface {
	HasRole(ctx context.Context, subject string, role authzentities.Role) (bool, error)
}

// RoleAuthorizer answers insurance role checks from the authorization role
// table.
type RoleAuthorizer struct {
	Roles RoleChecker
}

func (a RoleAuthorizer) HasRole(ctx context.Context, subject string, role insuranceports.Role) (bool, error) {
	parsed, err := authzentities.ParseRole(string(role))
	if err != nil {
		return false, fmt.Errorf("map insurance role %q: %w", role, err)
	}
	return a.Roles.HasRole(ctx, subject, parsed)
}

// Transferer is the slice of the custody ledger the insurance engine needs.
type Transferer interface {
	Transfer(ctx context.Context, input custodyports.TransferInput) (custodyports.Entry, bool, error)
}

// CustodyTransfers moves insurance funds through the in-process custody
// ledger.
type CustodyTransfers struct {
	Ledger Transferer
}

func (t CustodyTransfers) Transfer(ctx context.Context, req insuranceports.TransferRequest) error {
	_, _, err := t.Ledger.Transfer(ctx, custodyports.TransferInput{
		From:      req.From,
		To:        req.To,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, custodyerrors.ErrInsufficientFunds):
		return insuranceerrors.ErrInsufficientFunds
	case errors.Is(err, custodyerrors.ErrBalanceOverflow):
		return insuranceerrors.ErrAmountOverflow
	case errors.Is(err, custodyerrors.ErrReferenceConflict):
		return insuranceerrors.ErrTransferConflict
	case errors.Is(err, custodyerrors.ErrInvalidInput):
		return insuranceerrors.ErrInvalidInput
	default:
		return fmt.Errorf("custody transfer %s: %w", req.Reference, err)
	}
}

// DriftGauge publishes reconciliation reports as Prometheus series and logs
// every unbalanced pool.
type DriftGauge struct {
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (g DriftGauge) ObserveReconciliation(report insuranceports.ReconciliationReport) {
	if g.Metrics != nil {
		g.Metrics.ObservePoolDrift(report.PoolID, report.Drift, report.Balanced)
	}
	if report.Balanced {
		return
	}
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("pool conservation drift detected",
		"event", "pool_drift_detected",
		"module", moduleName,
		"layer", "platform",
		"pool_id", report.PoolID,
		"total_amount", report.TotalAmount,
		"accounts_total", report.AccountsTotal,
		"drift", report.Drift,
	)
}

var (
	_ insuranceports.Authorizer    = RoleAuthorizer{}
	_ insuranceports.FundsTransfer = CustodyTransfers{}
	_ insuranceports.DriftObserver = DriftGauge{}
)
