package http

// Amounts are integer minor currency units.

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePolicyRequest struct {
	Owner          string `json:"owner"`
	Premium        int64  `json:"premium"`
	Coverage       int64  `json:"coverage"`
	Conditions     string `json:"conditions,omitempty"`
	VerifierQuorum int    `json:"verifier_quorum,omitempty"`
}

type PayPremiumRequest struct {
	Payment int64 `json:"payment"`
}

type PolicyResponse struct {
	PolicyID       string `json:"policy_id"`
	Owner          string `json:"owner"`
	Premium        int64  `json:"premium"`
	Coverage       int64  `json:"coverage"`
	Conditions     string `json:"conditions,omitempty"`
	Active         bool   `json:"active"`
	VerifierQuorum int    `json:"verifier_quorum"`
	PremiumsPaid   int    `json:"premiums_paid"`
	LastPremiumAt  string `json:"last_premium_at,omitempty"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at"`
	DeactivatedAt  string `json:"deactivated_at,omitempty"`
	Replayed       bool   `json:"replayed,omitempty"`
}

type CreateClaimRequest struct {
	PolicyID string `json:"policy_id"`
	Claimant string `json:"claimant,omitempty"`
	Amount   int64  `json:"amount"`
}

type SettleClaimRequest struct {
	PoolID string `json:"pool_id"`
}

type ClaimResponse struct {
	ClaimID      string   `json:"claim_id"`
	PolicyID     string   `json:"policy_id"`
	Claimant     string   `json:"claimant"`
	Amount       int64    `json:"amount"`
	Status       string   `json:"status"`
	Verifiers    []string `json:"verifiers"`
	Quorum       int      `json:"quorum"`
	Verified     bool     `json:"verified"`
	Paid         bool     `json:"paid"`
	FiledBy      string   `json:"filed_by"`
	CreatedAt    string   `json:"created_at"`
	VerifiedAt   string   `json:"verified_at,omitempty"`
	PaidAt       string   `json:"paid_at,omitempty"`
	Transitioned bool     `json:"transitioned,omitempty"`
	Replayed     bool     `json:"replayed,omitempty"`
}

type ListClaimsResponse struct {
	Items []ClaimResponse `json:"items"`
}

type SettlementResponse struct {
	Claim ClaimResponse `json:"claim"`
	Pool  PoolResponse  `json:"pool"`
}

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

type AccountResponse struct {
	Owner          string `json:"owner"`
	Balance        int64  `json:"balance"`
	TotalStaked    int64  `json:"total_staked"`
	TotalWithdrawn int64  `json:"total_withdrawn"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

type PoolResponse struct {
	PoolID         string   `json:"pool_id"`
	CustodyAccount string   `json:"custody_account"`
	TotalAmount    int64    `json:"total_amount"`
	Stakers        []string `json:"stakers"`
	PaidOut        int64    `json:"paid_out"`
	AdminWithdrawn int64    `json:"admin_withdrawn"`
	CreatedBy      string   `json:"created_by"`
	CreatedAt      string   `json:"created_at"`
}

type PoolAccountResponse struct {
	Pool    PoolResponse    `json:"pool"`
	Account AccountResponse `json:"account"`
}

type ReconciliationResponse struct {
	PoolID         string `json:"pool_id"`
	TotalAmount    int64  `json:"total_amount"`
	AccountsTotal  int64  `json:"accounts_total"`
	PaidOut        int64  `json:"paid_out"`
	AdminWithdrawn int64  `json:"admin_withdrawn"`
	StakerCount    int    `json:"staker_count"`
	Drift          int64  `json:"drift"`
	Balanced       bool   `json:"balanced"`
	CheckedAt      string `json:"checked_at"`
}
