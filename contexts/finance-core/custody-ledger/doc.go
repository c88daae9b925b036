// Package custodyledger holds the balances that back every insurance money
// movement: premium payments, pool stakes and withdrawals, and claim payouts.
// Transfers are keyed by a caller-supplied reference so a retried request
// never moves funds twice.
package custodyledger
