package mutualinsurance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/adapters/memory"
	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
	httptransport "commonpool/contexts/finance-core/mutual-insurance/transport/http"
	contractsv1 "commonpool/contracts/gen/events/v1"

	"golang.org/x/sync/errgroup"
)

type roleTable map[string]ports.Role

func (r roleTable) HasRole(_ context.Context, subject string, role ports.Role) (bool, error) {
	return r[subject] == role, nil
}

type testLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	calls    int
	refs     []string
	fail     error
}

func newTestLedger(seed map[string]int64) *testLedger {
	balances := make(map[string]int64, len(seed))
	for account, amount := range seed {
		balances[account] = amount
	}
	return &testLedger{balances: balances}
}

func (l *testLedger) Transfer(_ context.Context, req ports.TransferRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.refs = append(l.refs, req.Reference)
	if l.fail != nil {
		return l.fail
	}
	if l.balances[req.From] < req.Amount {
		return domainerrors.ErrInsufficientFunds
	}
	l.balances[req.From] -= req.Amount
	l.balances[req.To] += req.Amount
	return nil
}

func (l *testLedger) balance(account string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

func (l *testLedger) transferCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *testLedger) references() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.refs...)
}

func (l *testLedger) failWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

var testRoles = roleTable{
	"admin-1":    ports.RoleAdmin,
	"verifier-a": ports.RoleVerifier,
	"verifier-b": ports.RoleVerifier,
}

func newTestModule(seed map[string]int64) (Module, *testLedger) {
	ledger := newTestLedger(seed)
	return NewInMemoryModule(testRoles, ledger, nil), ledger
}

func mustCreatePolicy(t *testing.T, module Module, quorum int) httptransport.PolicyResponse {
	t.Helper()
	policy, err := module.Handler.CreatePolicyHandler(context.Background(), "admin-1", "", httptransport.CreatePolicyRequest{
		Owner:          "owner-1",
		Premium:        100,
		Coverage:       1000,
		Conditions:     `{"peril":"flood"}`,
		VerifierQuorum: quorum,
	})
	if err != nil {
		t.Fatalf("create policy failed: %v", err)
	}
	return policy
}

func mustFileClaim(t *testing.T, module Module, policyID string, amount int64) httptransport.ClaimResponse {
	t.Helper()
	claim, err := module.Handler.CreateClaimHandler(context.Background(), "owner-1", "", httptransport.CreateClaimRequest{
		PolicyID: policyID,
		Amount:   amount,
	})
	if err != nil {
		t.Fatalf("create claim failed: %v", err)
	}
	return claim
}

func mustVerifiedClaim(t *testing.T, module Module, amount int64) httptransport.ClaimResponse {
	t.Helper()
	policy := mustCreatePolicy(t, module, 2)
	claim := mustFileClaim(t, module, policy.PolicyID, amount)
	for _, verifier := range []string{"verifier-a", "verifier-b"} {
		if _, err := module.Handler.VerifyClaimHandler(context.Background(), verifier, claim.ClaimID); err != nil {
			t.Fatalf("verify claim by %s failed: %v", verifier, err)
		}
	}
	return claim
}

func mustFundedPool(t *testing.T, module Module, staker string, amount int64) httptransport.PoolResponse {
	t.Helper()
	pool, err := module.Handler.CreatePoolHandler(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("create pool failed: %v", err)
	}
	if amount > 0 {
		if _, err := module.Handler.StakeHandler(context.Background(), staker, pool.PoolID, httptransport.AmountRequest{Amount: amount}); err != nil {
			t.Fatalf("stake failed: %v", err)
		}
	}
	return pool
}

func TestPolicyClaimPoolSettlementScenario(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"owner-1": 100, "staker-1": 1000})
	ctx := context.Background()

	policy := mustCreatePolicy(t, module, 0)
	if policy.VerifierQuorum != 2 || !policy.Active {
		t.Fatalf("unexpected policy: %+v", policy)
	}
	paid, err := module.Handler.PayPremiumHandler(ctx, "owner-1", policy.PolicyID, httptransport.PayPremiumRequest{Payment: 100})
	if err != nil {
		t.Fatalf("pay premium failed: %v", err)
	}
	if paid.PremiumsPaid != 1 {
		t.Fatalf("expected one premium recorded, got %d", paid.PremiumsPaid)
	}

	claim := mustFileClaim(t, module, policy.PolicyID, 500)
	if claim.Status != "filed" || claim.Claimant != "owner-1" {
		t.Fatalf("unexpected claim: %+v", claim)
	}
	first, err := module.Handler.VerifyClaimHandler(ctx, "verifier-a", claim.ClaimID)
	if err != nil {
		t.Fatalf("first verification failed: %v", err)
	}
	if first.Verified || first.Transitioned {
		t.Fatalf("claim verified before quorum: %+v", first)
	}
	second, err := module.Handler.VerifyClaimHandler(ctx, "verifier-b", claim.ClaimID)
	if err != nil {
		t.Fatalf("second verification failed: %v", err)
	}
	if !second.Verified || !second.Transitioned || second.Status != "verified" {
		t.Fatalf("expected verified claim, got %+v", second)
	}

	pool := mustFundedPool(t, module, "staker-1", 1000)
	if ledger.balance(pool.CustodyAccount) != 1000 {
		t.Fatalf("expected pool custody 1000, got %d", ledger.balance(pool.CustodyAccount))
	}

	settled, err := module.Handler.SettleClaimHandler(ctx, "owner-1", claim.ClaimID, httptransport.SettleClaimRequest{PoolID: pool.PoolID})
	if err != nil {
		t.Fatalf("settle claim failed: %v", err)
	}
	if !settled.Claim.Paid || settled.Pool.TotalAmount != 500 || settled.Pool.PaidOut != 500 {
		t.Fatalf("unexpected settlement: %+v", settled)
	}
	if ledger.balance("owner-1") != 600 {
		t.Fatalf("expected claimant balance 600, got %d", ledger.balance("owner-1"))
	}

	_, err = module.Handler.SettleClaimHandler(ctx, "owner-1", claim.ClaimID, httptransport.SettleClaimRequest{PoolID: pool.PoolID})
	if !errors.Is(err, domainerrors.ErrClaimAlreadyPaid) {
		t.Fatalf("expected already paid, got %v", err)
	}

	report, err := module.Handler.ReconcilePoolHandler(ctx, pool.PoolID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !report.Balanced || report.Drift != 0 || report.AccountsTotal != 1000 {
		t.Fatalf("unexpected reconciliation: %+v", report)
	}

	var types []string
	for _, event := range module.Store.OutboxEvents() {
		types = append(types, event.EventType)
	}
	want := []string{
		contractsv1.EventPolicyCreated,
		contractsv1.EventPolicyPremiumPaid,
		contractsv1.EventClaimCreated,
		contractsv1.EventClaimVerified,
		contractsv1.EventClaimVerified,
		contractsv1.EventPoolCreated,
		contractsv1.EventPoolStaked,
		contractsv1.EventClaimPaid,
	}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("unexpected outbox events:\nwant %v\ngot  %v", want, types)
	}
}

func TestSettlementWithInsufficientPoolLeavesStateUntouched(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"staker-1": 100})
	ctx := context.Background()
	claim := mustVerifiedClaim(t, module, 500)
	pool := mustFundedPool(t, module, "staker-1", 100)
	callsBefore := ledger.transferCalls()

	_, err := module.Handler.SettleClaimHandler(ctx, "owner-1", claim.ClaimID, httptransport.SettleClaimRequest{PoolID: pool.PoolID})
	if !errors.Is(err, domainerrors.ErrInsufficientPoolBalance) {
		t.Fatalf("expected insufficient pool balance, got %v", err)
	}
	if ledger.transferCalls() != callsBefore {
		t.Fatal("expected no transfer for rejected settlement")
	}
	stored, _ := module.Handler.GetClaimHandler(ctx, claim.ClaimID)
	if stored.Paid || stored.Status != "verified" {
		t.Fatalf("claim mutated by failed settlement: %+v", stored)
	}
	after, _ := module.Handler.GetPoolHandler(ctx, pool.PoolID)
	if after.TotalAmount != 100 || after.PaidOut != 0 {
		t.Fatalf("pool mutated by failed settlement: %+v", after)
	}
}

func TestSettlementRequiresVerifiedClaim(t *testing.T) {
	module, _ := newTestModule(map[string]int64{"staker-1": 1000})
	policy := mustCreatePolicy(t, module, 2)
	claim := mustFileClaim(t, module, policy.PolicyID, 100)
	pool := mustFundedPool(t, module, "staker-1", 1000)

	_, err := module.Handler.SettleClaimHandler(context.Background(), "owner-1", claim.ClaimID, httptransport.SettleClaimRequest{PoolID: pool.PoolID})
	if !errors.Is(err, domainerrors.ErrClaimNotVerified) {
		t.Fatalf("expected claim not verified, got %v", err)
	}
}

func TestFailedTransferRollsBackBookkeeping(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"staker-1": 1000})
	ctx := context.Background()
	claim := mustVerifiedClaim(t, module, 300)
	pool := mustFundedPool(t, module, "staker-1", 500)

	ledger.failWith(errors.New("custody offline"))
	if _, err := module.Handler.SettleClaimHandler(ctx, "owner-1", claim.ClaimID, httptransport.SettleClaimRequest{PoolID: pool.PoolID}); err == nil {
		t.Fatal("expected settlement to fail")
	}
	if _, err := module.Handler.StakeHandler(ctx, "staker-1", pool.PoolID, httptransport.AmountRequest{Amount: 100}); err == nil {
		t.Fatal("expected stake to fail")
	}
	if _, err := module.Handler.WithdrawHandler(ctx, "staker-1", pool.PoolID, httptransport.AmountRequest{Amount: 100}); err == nil {
		t.Fatal("expected withdraw to fail")
	}

	stored, _ := module.Handler.GetClaimHandler(ctx, claim.ClaimID)
	if stored.Paid {
		t.Fatal("claim marked paid after failed transfer")
	}
	account, err := module.Handler.GetAccountHandler(ctx, pool.PoolID, "staker-1")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	after, _ := module.Handler.GetPoolHandler(ctx, pool.PoolID)
	if account.Balance != 500 || after.TotalAmount != 500 {
		t.Fatalf("state mutated after failed transfers: account=%+v pool=%+v", account, after)
	}

	ledger.failWith(nil)
	if _, err := module.Handler.SettleClaimHandler(ctx, "owner-1", claim.ClaimID, httptransport.SettleClaimRequest{PoolID: pool.PoolID}); err != nil {
		t.Fatalf("retry settlement failed: %v", err)
	}
}

func TestStakeWithoutCustodyFundsIsRejected(t *testing.T) {
	module, _ := newTestModule(map[string]int64{"staker-1": 50})
	pool := mustFundedPool(t, module, "staker-1", 0)

	_, err := module.Handler.StakeHandler(context.Background(), "staker-1", pool.PoolID, httptransport.AmountRequest{Amount: 60})
	if !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	after, _ := module.Handler.GetPoolHandler(context.Background(), pool.PoolID)
	if after.TotalAmount != 0 || len(after.Stakers) != 0 {
		t.Fatalf("pool mutated by rejected stake: %+v", after)
	}
}

func TestAdminOperationsRequireAdminRole(t *testing.T) {
	module, _ := newTestModule(map[string]int64{"staker-1": 500})
	ctx := context.Background()

	_, err := module.Handler.CreatePolicyHandler(ctx, "owner-1", "", httptransport.CreatePolicyRequest{Owner: "owner-1", Premium: 10, Coverage: 100})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized policy creation, got %v", err)
	}
	if _, err := module.Handler.CreatePoolHandler(ctx, "staker-1"); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized pool creation, got %v", err)
	}

	policy := mustCreatePolicy(t, module, 2)
	_, err = module.Handler.CreateClaimHandler(ctx, "owner-1", "", httptransport.CreateClaimRequest{
		PolicyID: policy.PolicyID,
		Claimant: "someone-else",
		Amount:   10,
	})
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized claim on behalf, got %v", err)
	}
	onBehalf, err := module.Handler.CreateClaimHandler(ctx, "admin-1", "", httptransport.CreateClaimRequest{
		PolicyID: policy.PolicyID,
		Claimant: "someone-else",
		Amount:   10,
	})
	if err != nil {
		t.Fatalf("admin claim on behalf failed: %v", err)
	}
	if onBehalf.Claimant != "someone-else" || onBehalf.FiledBy != "admin-1" {
		t.Fatalf("unexpected on-behalf claim: %+v", onBehalf)
	}

	pool := mustFundedPool(t, module, "staker-1", 500)
	if _, err := module.Handler.AdminWithdrawHandler(ctx, "staker-1", pool.PoolID, httptransport.AmountRequest{Amount: 100}); !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized admin withdraw, got %v", err)
	}
	drained, err := module.Handler.AdminWithdrawHandler(ctx, "admin-1", pool.PoolID, httptransport.AmountRequest{Amount: 100})
	if err != nil {
		t.Fatalf("admin withdraw failed: %v", err)
	}
	if drained.TotalAmount != 400 || drained.AdminWithdrawn != 100 {
		t.Fatalf("unexpected drained pool: %+v", drained)
	}
	account, _ := module.Handler.GetAccountHandler(ctx, pool.PoolID, "staker-1")
	if account.Balance != 500 {
		t.Fatalf("admin drain touched staker account: %+v", account)
	}

	deactivated, err := module.Handler.DeactivatePolicyHandler(ctx, "admin-1", policy.PolicyID)
	if err != nil {
		t.Fatalf("deactivate policy failed: %v", err)
	}
	if deactivated.Active {
		t.Fatal("expected inactive policy")
	}
	_, err = module.Handler.CreateClaimHandler(ctx, "owner-1", "", httptransport.CreateClaimRequest{PolicyID: policy.PolicyID, Amount: 10})
	if !errors.Is(err, domainerrors.ErrPolicyInactive) {
		t.Fatalf("expected inactive policy rejection, got %v", err)
	}
}

func TestCreatePolicyIdempotencyReplayAndConflict(t *testing.T) {
	module, _ := newTestModule(nil)
	ctx := context.Background()
	req := httptransport.CreatePolicyRequest{Owner: "owner-1", Premium: 100, Coverage: 1000}

	first, err := module.Handler.CreatePolicyHandler(ctx, "admin-1", "idem-policy-1", req)
	if err != nil {
		t.Fatalf("create policy failed: %v", err)
	}
	second, err := module.Handler.CreatePolicyHandler(ctx, "admin-1", "idem-policy-1", req)
	if err != nil {
		t.Fatalf("replay policy failed: %v", err)
	}
	if !second.Replayed || second.PolicyID != first.PolicyID {
		t.Fatalf("expected replay of %s, got %+v", first.PolicyID, second)
	}

	req.Premium = 200
	if _, err := module.Handler.CreatePolicyHandler(ctx, "admin-1", "idem-policy-1", req); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestPremiumAndClaimValidation(t *testing.T) {
	module, _ := newTestModule(map[string]int64{"owner-1": 1000})
	ctx := context.Background()
	policy := mustCreatePolicy(t, module, 2)

	_, err := module.Handler.PayPremiumHandler(ctx, "owner-1", policy.PolicyID, httptransport.PayPremiumRequest{Payment: 99})
	if !errors.Is(err, domainerrors.ErrPremiumMismatch) {
		t.Fatalf("expected premium mismatch, got %v", err)
	}
	_, err = module.Handler.CreateClaimHandler(ctx, "owner-1", "", httptransport.CreateClaimRequest{PolicyID: policy.PolicyID, Amount: 1001})
	if !errors.Is(err, domainerrors.ErrCoverageExceeded) {
		t.Fatalf("expected coverage exceeded, got %v", err)
	}
	_, err = module.Handler.CreateClaimHandler(ctx, "owner-1", "", httptransport.CreateClaimRequest{PolicyID: "missing", Amount: 10})
	if !errors.Is(err, domainerrors.ErrPolicyNotFound) {
		t.Fatalf("expected policy not found, got %v", err)
	}

	claim := mustFileClaim(t, module, policy.PolicyID, 10)
	if _, err := module.Handler.VerifyClaimHandler(ctx, "owner-1", claim.ClaimID); !errors.Is(err, domainerrors.ErrSelfVerificationForbidden) {
		t.Fatalf("expected self verification rejection, got %v", err)
	}
	if _, err := module.Handler.VerifyClaimHandler(ctx, "verifier-a", claim.ClaimID); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := module.Handler.VerifyClaimHandler(ctx, "verifier-a", claim.ClaimID); !errors.Is(err, domainerrors.ErrDuplicateVerifier) {
		t.Fatalf("expected duplicate verifier rejection, got %v", err)
	}

	listed, err := module.Handler.ListPolicyClaimsHandler(ctx, policy.PolicyID)
	if err != nil {
		t.Fatalf("list claims failed: %v", err)
	}
	if len(listed.Items) != 1 || len(listed.Items[0].Verifiers) != 1 {
		t.Fatalf("unexpected claim listing: %+v", listed)
	}
}

func TestConcurrentVerificationsKeepEveryAttestation(t *testing.T) {
	module, _ := newTestModule(nil)
	policy := mustCreatePolicy(t, module, 5)
	claim := mustFileClaim(t, module, policy.PolicyID, 100)

	var transitions atomic.Int32
	var accepted atomic.Int32
	var group errgroup.Group
	for i := 0; i < 5; i++ {
		verifier := fmt.Sprintf("verifier-%d", i)
		for attempt := 0; attempt < 3; attempt++ {
			group.Go(func() error {
				result, err := module.Handler.VerifyClaimHandler(context.Background(), verifier, claim.ClaimID)
				if errors.Is(err, domainerrors.ErrDuplicateVerifier) || errors.Is(err, domainerrors.ErrClaimAlreadyVerified) {
					return nil
				}
				if err != nil {
					return err
				}
				accepted.Add(1)
				if result.Transitioned {
					transitions.Add(1)
				}
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent verification failed: %v", err)
	}

	stored, _ := module.Handler.GetClaimHandler(context.Background(), claim.ClaimID)
	if len(stored.Verifiers) != 5 || !stored.Verified {
		t.Fatalf("expected 5 verifiers and verified claim, got %+v", stored)
	}
	if accepted.Load() != 5 {
		t.Fatalf("expected 5 accepted attestations, got %d", accepted.Load())
	}
	if transitions.Load() != 1 {
		t.Fatalf("expected exactly one transition, got %d", transitions.Load())
	}
}

func TestConcurrentSettlementsPayOnce(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"staker-1": 1000})
	claim := mustVerifiedClaim(t, module, 200)
	pool := mustFundedPool(t, module, "staker-1", 1000)

	var paid atomic.Int32
	var group errgroup.Group
	for i := 0; i < 8; i++ {
		group.Go(func() error {
			_, err := module.Handler.SettleClaimHandler(context.Background(), "owner-1", claim.ClaimID, httptransport.SettleClaimRequest{PoolID: pool.PoolID})
			if errors.Is(err, domainerrors.ErrClaimAlreadyPaid) {
				return nil
			}
			if err != nil {
				return err
			}
			paid.Add(1)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent settlement failed: %v", err)
	}
	if paid.Load() != 1 {
		t.Fatalf("expected one payment, got %d", paid.Load())
	}
	after, _ := module.Handler.GetPoolHandler(context.Background(), pool.PoolID)
	if after.TotalAmount != 800 || ledger.balance("owner-1") != 200 {
		t.Fatalf("unexpected balances: pool=%d claimant=%d", after.TotalAmount, ledger.balance("owner-1"))
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"staker-1": 100})
	pool := mustFundedPool(t, module, "staker-1", 100)

	var succeeded atomic.Int32
	var group errgroup.Group
	for i := 0; i < 10; i++ {
		group.Go(func() error {
			_, err := module.Handler.WithdrawHandler(context.Background(), "staker-1", pool.PoolID, httptransport.AmountRequest{Amount: 30})
			if errors.Is(err, domainerrors.ErrInsufficientBalance) {
				return nil
			}
			if err != nil {
				return err
			}
			succeeded.Add(1)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent withdraw failed: %v", err)
	}
	if succeeded.Load() != 3 {
		t.Fatalf("expected 3 withdrawals, got %d", succeeded.Load())
	}
	account, _ := module.Handler.GetAccountHandler(context.Background(), pool.PoolID, "staker-1")
	after, _ := module.Handler.GetPoolHandler(context.Background(), pool.PoolID)
	if account.Balance != 10 || after.TotalAmount != 10 {
		t.Fatalf("unexpected balances: account=%d pool=%d", account.Balance, after.TotalAmount)
	}
	if ledger.balance(pool.CustodyAccount) != after.TotalAmount {
		t.Fatalf("custody %d diverged from pool total %d", ledger.balance(pool.CustodyAccount), after.TotalAmount)
	}
}

func TestStakeOverflowIsRejectedBeforeFundsMove(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"staker-a": math.MaxInt64, "staker-b": 1})
	ctx := context.Background()
	pool := mustFundedPool(t, module, "staker-a", math.MaxInt64)

	_, err := module.Handler.StakeHandler(ctx, "staker-b", pool.PoolID, httptransport.AmountRequest{Amount: 1})
	if !errors.Is(err, domainerrors.ErrAmountOverflow) {
		t.Fatalf("expected amount overflow, got %v", err)
	}
	_, err = module.Handler.StakeHandler(ctx, "staker-a", pool.PoolID, httptransport.AmountRequest{Amount: 1})
	if !errors.Is(err, domainerrors.ErrAmountOverflow) {
		t.Fatalf("expected amount overflow for existing staker, got %v", err)
	}

	after, _ := module.Handler.GetPoolHandler(ctx, pool.PoolID)
	if after.TotalAmount != math.MaxInt64 {
		t.Fatalf("pool total changed by rejected stake: %d", after.TotalAmount)
	}
	if ledger.balance("staker-b") != 1 || ledger.transferCalls() != 1 {
		t.Fatalf("rejected stake moved funds: staker-b=%d calls=%d", ledger.balance("staker-b"), ledger.transferCalls())
	}
}

func TestCustodyAccountIdsCannotActAsParties(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"staker-1": 500, "owner-1": 100})
	ctx := context.Background()
	pool := mustFundedPool(t, module, "staker-1", 500)
	policy := mustCreatePolicy(t, module, 2)
	custodyID := pool.CustodyAccount

	if _, err := module.Handler.StakeHandler(ctx, custodyID, pool.PoolID, httptransport.AmountRequest{Amount: 500}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected custody staker rejection, got %v", err)
	}
	if _, err := module.Handler.WithdrawHandler(ctx, custodyID, pool.PoolID, httptransport.AmountRequest{Amount: 1}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected custody withdrawal rejection, got %v", err)
	}
	if _, err := module.Handler.PayPremiumHandler(ctx, custodyID, policy.PolicyID, httptransport.PayPremiumRequest{Payment: 100}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected custody payer rejection, got %v", err)
	}
	_, err := module.Handler.CreateClaimHandler(ctx, "admin-1", "", httptransport.CreateClaimRequest{PolicyID: policy.PolicyID, Claimant: custodyID, Amount: 10})
	if !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected custody claimant rejection, got %v", err)
	}
	_, err = module.Handler.CreatePolicyHandler(ctx, "admin-1", "", httptransport.CreatePolicyRequest{Owner: custodyID, Premium: 1, Coverage: 1})
	if !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected custody owner rejection, got %v", err)
	}

	after, _ := module.Handler.GetPoolHandler(ctx, pool.PoolID)
	if after.TotalAmount != 500 || ledger.balance(custodyID) != 500 {
		t.Fatalf("pool total %d and custody %d must stay 500", after.TotalAmount, ledger.balance(custodyID))
	}
}

func TestPremiumReferencesArePayerSpecific(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"payer-2": 100, "owner-1": 100})
	ctx := context.Background()
	policy := mustCreatePolicy(t, module, 2)

	if _, err := module.Handler.PayPremiumHandler(ctx, "owner-1", policy.PolicyID, httptransport.PayPremiumRequest{Payment: 100}); err != nil {
		t.Fatalf("owner premium failed: %v", err)
	}
	if ledger.transferCalls() != 0 || ledger.balance("owner-1") != 100 {
		t.Fatalf("owner premium must not move funds: calls=%d", ledger.transferCalls())
	}

	if _, err := module.Handler.PayPremiumHandler(ctx, "payer-2", policy.PolicyID, httptransport.PayPremiumRequest{Payment: 100}); err != nil {
		t.Fatalf("third-party premium failed: %v", err)
	}
	want := fmt.Sprintf("policy-premium:%s:2:payer-2", policy.PolicyID)
	if refs := ledger.references(); len(refs) != 1 || refs[0] != want {
		t.Fatalf("expected reference %q, got %v", want, refs)
	}
	if ledger.balance("payer-2") != 0 || ledger.balance("owner-1") != 200 {
		t.Fatalf("unexpected balances payer-2=%d owner-1=%d", ledger.balance("payer-2"), ledger.balance("owner-1"))
	}
}

type slowIDs struct {
	delay time.Duration
	next  atomic.Int64
}

func (g *slowIDs) NewID(context.Context) (string, error) {
	time.Sleep(g.delay)
	return fmt.Sprintf("id-%d", g.next.Add(1)), nil
}

func TestConcurrentClaimsWithSameIdempotencyKeyFileOnce(t *testing.T) {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Policies:       store,
		Claims:         store,
		Pools:          store,
		Settlements:    store,
		Idempotency:    store,
		Outbox:         store,
		Authorizer:     testRoles,
		Transfers:      newTestLedger(nil),
		Clock:          store,
		IDGen:          &slowIDs{delay: 5 * time.Millisecond},
		IdempotencyTTL: time.Hour,
	})
	policy := mustCreatePolicy(t, module, 2)
	req := httptransport.CreateClaimRequest{PolicyID: policy.PolicyID, Amount: 100}

	var (
		mu       sync.Mutex
		claimIDs = make(map[string]struct{})
		group    errgroup.Group
	)
	for i := 0; i < 8; i++ {
		group.Go(func() error {
			claim, err := module.Handler.CreateClaimHandler(context.Background(), "owner-1", "incident-42", req)
			if errors.Is(err, domainerrors.ErrIdempotencyInProgress) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			claimIDs[claim.ClaimID] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent create claim failed: %v", err)
	}
	if len(claimIDs) != 1 {
		t.Fatalf("expected every success to name one claim, got %d", len(claimIDs))
	}
	listed, err := module.Handler.ListPolicyClaimsHandler(context.Background(), policy.PolicyID)
	if err != nil {
		t.Fatalf("list claims failed: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("one idempotency key filed %d claims", len(listed.Items))
	}

	replay, err := module.Handler.CreateClaimHandler(context.Background(), "owner-1", "incident-42", req)
	if err != nil || !replay.Replayed || replay.ClaimID != listed.Items[0].ClaimID {
		t.Fatalf("expected replay of %s, got %+v err=%v", listed.Items[0].ClaimID, replay, err)
	}
}

func TestFailedKeyedCreateReleasesKey(t *testing.T) {
	module, _ := newTestModule(nil)
	ctx := context.Background()
	policy := mustCreatePolicy(t, module, 2)

	_, err := module.Handler.CreateClaimHandler(ctx, "owner-1", "incident-7", httptransport.CreateClaimRequest{PolicyID: policy.PolicyID, Amount: 5000})
	if !errors.Is(err, domainerrors.ErrCoverageExceeded) {
		t.Fatalf("expected coverage exceeded, got %v", err)
	}
	_, err = module.Handler.CreateClaimHandler(ctx, "owner-1", "incident-7", httptransport.CreateClaimRequest{PolicyID: policy.PolicyID, Amount: 500})
	if err != nil {
		t.Fatalf("key should be free after a failed create, got %v", err)
	}
}

func TestPoolConservationAcrossOperationSequence(t *testing.T) {
	module, ledger := newTestModule(map[string]int64{"staker-1": 1000, "staker-2": 1000})
	ctx := context.Background()
	pool := mustFundedPool(t, module, "staker-1", 0)

	type step struct {
		op     string
		actor  string
		amount int64
	}
	steps := []step{
		{"stake", "staker-1", 400},
		{"stake", "staker-2", 300},
		{"withdraw", "staker-1", 150},
		{"settle", "", 200},
		{"admin", "admin-1", 50},
		{"withdraw", "staker-2", 300},
		{"stake", "staker-2", 100},
		{"settle", "", 500},
		{"withdraw", "staker-1", 250},
	}
	for i, s := range steps {
		var err error
		switch s.op {
		case "stake":
			_, err = module.Handler.StakeHandler(ctx, s.actor, pool.PoolID, httptransport.AmountRequest{Amount: s.amount})
		case "withdraw":
			_, err = module.Handler.WithdrawHandler(ctx, s.actor, pool.PoolID, httptransport.AmountRequest{Amount: s.amount})
		case "admin":
			_, err = module.Handler.AdminWithdrawHandler(ctx, s.actor, pool.PoolID, httptransport.AmountRequest{Amount: s.amount})
		case "settle":
			claim := mustVerifiedClaim(t, module, s.amount)
			_, err = module.Handler.SettleClaimHandler(ctx, "owner-1", claim.ClaimID, httptransport.SettleClaimRequest{PoolID: pool.PoolID})
		}
		if err != nil && !errors.Is(err, domainerrors.ErrInsufficientPoolBalance) && !errors.Is(err, domainerrors.ErrInsufficientBalance) {
			t.Fatalf("step %d (%s) failed: %v", i, s.op, err)
		}

		report, err := module.Handler.ReconcilePoolHandler(ctx, pool.PoolID)
		if err != nil {
			t.Fatalf("reconcile after step %d failed: %v", i, err)
		}
		if report.TotalAmount < 0 {
			t.Fatalf("negative pool total after step %d: %+v", i, report)
		}
		if !report.Balanced {
			t.Fatalf("pool drifted after step %d: %+v", i, report)
		}
		if ledger.balance(pool.CustodyAccount) != report.TotalAmount {
			t.Fatalf("custody %d diverged from pool total %d after step %d", ledger.balance(pool.CustodyAccount), report.TotalAmount, i)
		}
	}
}
