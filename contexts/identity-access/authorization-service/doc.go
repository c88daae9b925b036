// Package authorization implements the role table behind every privileged
// insurance operation.
//
// Layering:
// - domain: role values, assignments, audit entries, errors
// - application: commands/queries using explicit ports
// - ports: persistence boundaries
// - adapters: concrete HTTP, memory and postgres implementations
// - transport: module-private DTOs for HTTP contracts
//
// Each subject holds at most one role. Assignment is last-write-wins and
// only an admin may assign; the first admins are seeded at start-up.
package authorization
