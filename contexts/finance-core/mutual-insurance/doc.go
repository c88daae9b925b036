// Package mutualinsurance implements the claim-settlement and pooled-fund
// accounting engine inside the finance-core context.
//
// Layering:
// - domain: policy, claim and pool entities, quorum/condition/settlement rules, errors
// - application: commands/queries/workers using explicit ports
// - ports: stable boundaries for persistence, authorization, funds transfer, events
// - adapters: memory, postgres, http and remote custody gateway implementations
// - transport: module-private DTOs for HTTP contracts
//
// Lock order for any operation touching more than one record:
// policy, then claim, then pool, then the custody ledger behind FundsTransfer.
package mutualinsurance
