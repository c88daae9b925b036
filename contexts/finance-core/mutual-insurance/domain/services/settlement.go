package services

import (
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
)

// CheckSettlement runs every settlement precondition in order without
// mutating either record.
func CheckSettlement(claim entities.Claim, pool entities.Pool) error {
	if err := claim.CheckPayable(); err != nil {
		return err
	}
	return pool.CheckPayOut(claim.Amount)
}

// ApplySettlement marks the claim paid and debits the pool. Callers run it
// only after the funds transfer succeeded, on working copies they commit
// together.
func ApplySettlement(claim *entities.Claim, pool *entities.Pool, now time.Time) error {
	if err := CheckSettlement(*claim, *pool); err != nil {
		return err
	}
	if err := pool.PayOut(claim.Amount, now); err != nil {
		return err
	}
	return claim.MarkPaid(now)
}

// SettlementReference is the deterministic custody reference for a claim
// payout, so a retried settlement cannot move funds twice.
func SettlementReference(claimID string) string {
	return "claim-settlement:" + claimID
}
