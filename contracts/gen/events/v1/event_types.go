package v1

// Event types emitted by the mutual insurance engine.
const (
	EventPolicyCreated      = "policy.created"
	EventPolicyPremiumPaid  = "policy.premium_paid"
	EventPolicyDeactivated  = "policy.deactivated"
	EventClaimCreated       = "claim.created"
	EventClaimVerified      = "claim.verified"
	EventClaimPaid          = "claim.paid"
	EventPoolCreated        = "pool.created"
	EventPoolStaked         = "pool.staked"
	EventPoolWithdrawn      = "pool.withdrawn"
	EventPoolAdminWithdrawn = "pool.admin_withdrawn"
)

var knownEventTypes = map[string]struct{}{
	EventPolicyCreated:      {},
	EventPolicyPremiumPaid:  {},
	EventPolicyDeactivated:  {},
	EventClaimCreated:       {},
	EventClaimVerified:      {},
	EventClaimPaid:          {},
	EventPoolCreated:        {},
	EventPoolStaked:         {},
	EventPoolWithdrawn:      {},
	EventPoolAdminWithdrawn: {},
}

func IsKnownEventType(eventType string) bool {
	_, ok := knownEventTypes[eventType]
	return ok
}
