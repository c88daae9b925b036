package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/application/commands"
	"commonpool/contexts/finance-core/mutual-insurance/application/queries"
	"commonpool/contexts/finance-core/mutual-insurance/domain/entities"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
	httptransport "commonpool/contexts/finance-core/mutual-insurance/transport/http"
)

type Handler struct {
	CreatePolicy     commands.CreatePolicyUseCase
	PayPremium       commands.PayPremiumUseCase
	DeactivatePolicy commands.DeactivatePolicyUseCase
	CreateClaim      commands.CreateClaimUseCase
	VerifyClaim      commands.VerifyClaimUseCase
	PayClaim         commands.PayClaimUseCase
	CreatePool       commands.CreatePoolUseCase
	Stake            commands.StakeUseCase
	Withdraw         commands.WithdrawUseCase
	AdminWithdraw    commands.AdminWithdrawUseCase
	Policies         queries.PolicyQueryUseCase
	Pools            queries.PoolQueryUseCase
	Logger           *slog.Logger
}

// CreatePolicyHandler godoc
// @Summary Issue an insurance policy
// @Description Creates an active policy. Requires the admin role.
// @Tags mutual-insurance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Caller address"
// @Param Idempotency-Key header string false "Replay key"
// @Param request body httptransport.CreatePolicyRequest true "Policy terms"
// @Success 201 {object} httptransport.PolicyResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/policies [post]
func (h Handler) CreatePolicyHandler(
	ctx context.Context,
	callerID string,
	idempotencyKey string,
	req httptransport.CreatePolicyRequest,
) (httptransport.PolicyResponse, error) {
	result, err := h.CreatePolicy.Execute(ctx, commands.CreatePolicyCommand{
		CallerID:       callerID,
		IdempotencyKey: idempotencyKey,
		Owner:          req.Owner,
		Premium:        req.Premium,
		Coverage:       req.Coverage,
		Conditions:     []byte(req.Conditions),
		VerifierQuorum: req.VerifierQuorum,
	})
	if err != nil {
		return httptransport.PolicyResponse{}, err
	}
	resp := mapPolicy(result.Policy)
	resp.Replayed = result.Replayed
	return resp, nil
}

// GetPolicyHandler godoc
// @Summary Get a policy
// @Tags mutual-insurance
// @Produce json
// @Param policy_id path string true "Policy id"
// @Success 200 {object} httptransport.PolicyResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/policies/{policy_id} [get]
func (h Handler) GetPolicyHandler(ctx context.Context, policyID string) (httptransport.PolicyResponse, error) {
	policy, err := h.Policies.GetPolicy(ctx, policyID)
	if err != nil {
		return httptransport.PolicyResponse{}, err
	}
	return mapPolicy(policy), nil
}

// PayPremiumHandler godoc
// @Summary Pay a policy premium
// @Description Payment must equal the policy premium exactly; funds move from the payer to the policy owner.
// @Tags mutual-insurance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Payer address"
// @Param policy_id path string true "Policy id"
// @Param request body httptransport.PayPremiumRequest true "Payment"
// @Success 200 {object} httptransport.PolicyResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/policies/{policy_id}/premiums [post]
func (h Handler) PayPremiumHandler(
	ctx context.Context,
	payerID string,
	policyID string,
	req httptransport.PayPremiumRequest,
) (httptransport.PolicyResponse, error) {
	policy, err := h.PayPremium.Execute(ctx, commands.PayPremiumCommand{
		PolicyID: policyID,
		PayerID:  payerID,
		Payment:  req.Payment,
	})
	if err != nil {
		return httptransport.PolicyResponse{}, err
	}
	return mapPolicy(policy), nil
}

// DeactivatePolicyHandler godoc
// @Summary Deactivate a policy
// @Tags mutual-insurance
// @Produce json
// @Param X-User-Id header string true "Admin address"
// @Param policy_id path string true "Policy id"
// @Success 200 {object} httptransport.PolicyResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/policies/{policy_id}/deactivate [post]
func (h Handler) DeactivatePolicyHandler(ctx context.Context, callerID string, policyID string) (httptransport.PolicyResponse, error) {
	policy, err := h.DeactivatePolicy.Execute(ctx, commands.DeactivatePolicyCommand{
		PolicyID: policyID,
		CallerID: callerID,
	})
	if err != nil {
		return httptransport.PolicyResponse{}, err
	}
	return mapPolicy(policy), nil
}

// CreateClaimHandler godoc
// @Summary File a claim
// @Description Files a claim against an active policy. The caller is the claimant unless an admin files on their behalf.
// @Tags mutual-insurance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Caller address"
// @Param Idempotency-Key header string false "Replay key"
// @Param request body httptransport.CreateClaimRequest true "Claim"
// @Success 201 {object} httptransport.ClaimResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/claims [post]
func (h Handler) CreateClaimHandler(
	ctx context.Context,
	callerID string,
	idempotencyKey string,
	req httptransport.CreateClaimRequest,
) (httptransport.ClaimResponse, error) {
	result, err := h.CreateClaim.Execute(ctx, commands.CreateClaimCommand{
		CallerID:       callerID,
		IdempotencyKey: idempotencyKey,
		PolicyID:       req.PolicyID,
		Claimant:       req.Claimant,
		Amount:         req.Amount,
	})
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	resp := mapClaim(result.Claim)
	resp.Replayed = result.Replayed
	return resp, nil
}

// GetClaimHandler godoc
// @Summary Get a claim
// @Tags mutual-insurance
// @Produce json
// @Param claim_id path string true "Claim id"
// @Success 200 {object} httptransport.ClaimResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/claims/{claim_id} [get]
func (h Handler) GetClaimHandler(ctx context.Context, claimID string) (httptransport.ClaimResponse, error) {
	claim, err := h.Policies.GetClaim(ctx, claimID)
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	return mapClaim(claim), nil
}

// ListPolicyClaimsHandler godoc
// @Summary List claims filed against a policy
// @Tags mutual-insurance
// @Produce json
// @Param policy_id path string true "Policy id"
// @Success 200 {object} httptransport.ListClaimsResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/policies/{policy_id}/claims [get]
func (h Handler) ListPolicyClaimsHandler(ctx context.Context, policyID string) (httptransport.ListClaimsResponse, error) {
	claims, err := h.Policies.ListClaims(ctx, policyID)
	if err != nil {
		return httptransport.ListClaimsResponse{}, err
	}
	items := make([]httptransport.ClaimResponse, 0, len(claims))
	for _, claim := range claims {
		items = append(items, mapClaim(claim))
	}
	return httptransport.ListClaimsResponse{Items: items}, nil
}

// VerifyClaimHandler godoc
// @Summary Attest a claim
// @Description Adds the caller as a verifier. The claim becomes verified once the policy quorum of distinct verifiers is reached.
// @Tags mutual-insurance
// @Produce json
// @Param X-User-Id header string true "Verifier address"
// @Param claim_id path string true "Claim id"
// @Success 200 {object} httptransport.ClaimResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/claims/{claim_id}/verifications [post]
func (h Handler) VerifyClaimHandler(ctx context.Context, verifierID string, claimID string) (httptransport.ClaimResponse, error) {
	result, err := h.VerifyClaim.Execute(ctx, commands.VerifyClaimCommand{
		ClaimID:    claimID,
		VerifierID: verifierID,
	})
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	resp := mapClaim(result.Claim)
	resp.Transitioned = result.Transitioned
	return resp, nil
}

// SettleClaimHandler godoc
// @Summary Settle a verified claim from a pool
// @Tags mutual-insurance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Caller address"
// @Param claim_id path string true "Claim id"
// @Param request body httptransport.SettleClaimRequest true "Funding pool"
// @Success 200 {object} httptransport.SettlementResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/claims/{claim_id}/settlement [post]
func (h Handler) SettleClaimHandler(
	ctx context.Context,
	callerID string,
	claimID string,
	req httptransport.SettleClaimRequest,
) (httptransport.SettlementResponse, error) {
	result, err := h.PayClaim.Execute(ctx, commands.PayClaimCommand{
		ClaimID:  claimID,
		PoolID:   req.PoolID,
		CallerID: callerID,
	})
	if err != nil {
		return httptransport.SettlementResponse{}, err
	}
	return httptransport.SettlementResponse{
		Claim: mapClaim(result.Claim),
		Pool:  mapPool(result.Pool),
	}, nil
}

// CreatePoolHandler godoc
// @Summary Create a community pool
// @Tags mutual-insurance
// @Produce json
// @Param X-User-Id header string true "Admin address"
// @Success 201 {object} httptransport.PoolResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /v1/pools [post]
func (h Handler) CreatePoolHandler(ctx context.Context, callerID string) (httptransport.PoolResponse, error) {
	pool, err := h.CreatePool.Execute(ctx, commands.CreatePoolCommand{CallerID: callerID})
	if err != nil {
		return httptransport.PoolResponse{}, err
	}
	return mapPool(pool), nil
}

// GetPoolHandler godoc
// @Summary Get a community pool
// @Tags mutual-insurance
// @Produce json
// @Param pool_id path string true "Pool id"
// @Success 200 {object} httptransport.PoolResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/pools/{pool_id} [get]
func (h Handler) GetPoolHandler(ctx context.Context, poolID string) (httptransport.PoolResponse, error) {
	pool, err := h.Pools.GetPool(ctx, poolID)
	if err != nil {
		return httptransport.PoolResponse{}, err
	}
	return mapPool(pool), nil
}

// StakeHandler godoc
// @Summary Stake funds into a pool
// @Tags mutual-insurance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Staker address"
// @Param pool_id path string true "Pool id"
// @Param request body httptransport.AmountRequest true "Stake amount"
// @Success 200 {object} httptransport.PoolAccountResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/pools/{pool_id}/stake [post]
func (h Handler) StakeHandler(
	ctx context.Context,
	stakerID string,
	poolID string,
	req httptransport.AmountRequest,
) (httptransport.PoolAccountResponse, error) {
	result, err := h.Stake.Execute(ctx, commands.StakeCommand{
		PoolID:   poolID,
		StakerID: stakerID,
		Amount:   req.Amount,
	})
	if err != nil {
		return httptransport.PoolAccountResponse{}, err
	}
	return httptransport.PoolAccountResponse{
		Pool:    mapPool(result.Pool),
		Account: mapAccount(result.Account),
	}, nil
}

// WithdrawHandler godoc
// @Summary Withdraw staked funds
// @Tags mutual-insurance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Staker address"
// @Param pool_id path string true "Pool id"
// @Param request body httptransport.AmountRequest true "Withdrawal amount"
// @Success 200 {object} httptransport.PoolAccountResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/pools/{pool_id}/withdraw [post]
func (h Handler) WithdrawHandler(
	ctx context.Context,
	callerID string,
	poolID string,
	req httptransport.AmountRequest,
) (httptransport.PoolAccountResponse, error) {
	result, err := h.Withdraw.Execute(ctx, commands.WithdrawCommand{
		PoolID:   poolID,
		CallerID: callerID,
		Amount:   req.Amount,
	})
	if err != nil {
		return httptransport.PoolAccountResponse{}, err
	}
	return httptransport.PoolAccountResponse{
		Pool:    mapPool(result.Pool),
		Account: mapAccount(result.Account),
	}, nil
}

// AdminWithdrawHandler godoc
// @Summary Drain pool custody
// @Description Operational withdrawal that bypasses staker accounts. Requires the admin role.
// @Tags mutual-insurance
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Admin address"
// @Param pool_id path string true "Pool id"
// @Param request body httptransport.AmountRequest true "Withdrawal amount"
// @Success 200 {object} httptransport.PoolResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/admin/pools/{pool_id}/withdraw [post]
func (h Handler) AdminWithdrawHandler(
	ctx context.Context,
	callerID string,
	poolID string,
	req httptransport.AmountRequest,
) (httptransport.PoolResponse, error) {
	pool, err := h.AdminWithdraw.Execute(ctx, commands.AdminWithdrawCommand{
		PoolID:   poolID,
		CallerID: callerID,
		Amount:   req.Amount,
	})
	if err != nil {
		return httptransport.PoolResponse{}, err
	}
	return mapPool(pool), nil
}

// GetAccountHandler godoc
// @Summary Get a staker account
// @Tags mutual-insurance
// @Produce json
// @Param pool_id path string true "Pool id"
// @Param owner path string true "Staker address"
// @Success 200 {object} httptransport.AccountResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/pools/{pool_id}/accounts/{owner} [get]
func (h Handler) GetAccountHandler(ctx context.Context, poolID string, owner string) (httptransport.AccountResponse, error) {
	account, err := h.Pools.GetAccount(ctx, poolID, owner)
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	return mapAccount(account), nil
}

// ReconcilePoolHandler godoc
// @Summary Check pool conservation
// @Tags mutual-insurance
// @Produce json
// @Param pool_id path string true "Pool id"
// @Success 200 {object} httptransport.ReconciliationResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/pools/{pool_id}/reconciliation [get]
func (h Handler) ReconcilePoolHandler(ctx context.Context, poolID string) (httptransport.ReconciliationResponse, error) {
	report, err := h.Pools.Reconcile(ctx, poolID)
	if err != nil {
		return httptransport.ReconciliationResponse{}, err
	}
	return mapReconciliation(report), nil
}

func mapPolicy(policy entities.Policy) httptransport.PolicyResponse {
	return httptransport.PolicyResponse{
		PolicyID:       policy.PolicyID,
		Owner:          policy.Owner,
		Premium:        policy.Premium,
		Coverage:       policy.Coverage,
		Conditions:     string(policy.Conditions),
		Active:         policy.Active,
		VerifierQuorum: policy.VerifierQuorum,
		PremiumsPaid:   policy.PremiumsPaid,
		LastPremiumAt:  formatOptionalTime(policy.LastPremiumAt),
		CreatedBy:      policy.CreatedBy,
		CreatedAt:      policy.CreatedAt.UTC().Format(time.RFC3339),
		DeactivatedAt:  formatOptionalTime(policy.DeactivatedAt),
	}
}

func mapClaim(claim entities.Claim) httptransport.ClaimResponse {
	return httptransport.ClaimResponse{
		ClaimID:    claim.ClaimID,
		PolicyID:   claim.PolicyID,
		Claimant:   claim.Claimant,
		Amount:     claim.Amount,
		Status:     string(claim.Status),
		Verifiers:  append([]string{}, claim.Verifiers...),
		Quorum:     claim.Quorum,
		Verified:   claim.Verified,
		Paid:       claim.Paid,
		FiledBy:    claim.FiledBy,
		CreatedAt:  claim.CreatedAt.UTC().Format(time.RFC3339),
		VerifiedAt: formatOptionalTime(claim.VerifiedAt),
		PaidAt:     formatOptionalTime(claim.PaidAt),
	}
}

func mapPool(pool entities.Pool) httptransport.PoolResponse {
	return httptransport.PoolResponse{
		PoolID:         pool.PoolID,
		CustodyAccount: pool.CustodyAccount(),
		TotalAmount:    pool.TotalAmount,
		Stakers:        append([]string{}, pool.Stakers...),
		PaidOut:        pool.PaidOut,
		AdminWithdrawn: pool.AdminWithdrawn,
		CreatedBy:      pool.CreatedBy,
		CreatedAt:      pool.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapAccount(account entities.Account) httptransport.AccountResponse {
	resp := httptransport.AccountResponse{
		Owner:          account.Owner,
		Balance:        account.Balance,
		TotalStaked:    account.TotalStaked,
		TotalWithdrawn: account.TotalWithdrawn,
	}
	if !account.UpdatedAt.IsZero() {
		resp.UpdatedAt = account.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func mapReconciliation(report ports.ReconciliationReport) httptransport.ReconciliationResponse {
	return httptransport.ReconciliationResponse{
		PoolID:         report.PoolID,
		TotalAmount:    report.TotalAmount,
		AccountsTotal:  report.AccountsTotal,
		PaidOut:        report.PaidOut,
		AdminWithdrawn: report.AdminWithdrawn,
		StakerCount:    report.StakerCount,
		Drift:          report.Drift,
		Balanced:       report.Balanced,
		CheckedAt:      report.CheckedAt.UTC().Format(time.RFC3339),
	}
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
