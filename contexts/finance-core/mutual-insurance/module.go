package mutualinsurance

import (
	"log/slog"
	"time"

	httpadapter "commonpool/contexts/finance-core/mutual-insurance/adapters/http"
	"commonpool/contexts/finance-core/mutual-insurance/adapters/memory"
	"commonpool/contexts/finance-core/mutual-insurance/application/commands"
	"commonpool/contexts/finance-core/mutual-insurance/application/queries"
	"commonpool/contexts/finance-core/mutual-insurance/domain/services"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Policies            ports.PolicyRepository
	Claims              ports.ClaimRepository
	Pools               ports.PoolRepository
	Settlements         ports.SettlementRepository
	Idempotency         ports.IdempotencyStore
	Outbox              ports.OutboxWriter
	Authorizer          ports.Authorizer
	Transfers           ports.FundsTransfer
	Conditions          services.ConditionPredicate
	Clock               ports.Clock
	IDGen               ports.IDGenerator
	IdempotencyTTL      time.Duration
	DefaultQuorum       int
	RequireVerifierRole bool
	Logger              *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Handler: httpadapter.Handler{
			CreatePolicy: commands.CreatePolicyUseCase{
				Policies:       deps.Policies,
				Authorizer:     deps.Authorizer,
				Idempotency:    deps.Idempotency,
				Outbox:         deps.Outbox,
				Clock:          deps.Clock,
				IDGen:          deps.IDGen,
				IdempotencyTTL: deps.IdempotencyTTL,
				DefaultQuorum:  deps.DefaultQuorum,
				Logger:         deps.Logger,
			},
			PayPremium: commands.PayPremiumUseCase{
				Policies:  deps.Policies,
				Transfers: deps.Transfers,
				Outbox:    deps.Outbox,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			DeactivatePolicy: commands.DeactivatePolicyUseCase{
				Policies:   deps.Policies,
				Authorizer: deps.Authorizer,
				Outbox:     deps.Outbox,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Logger:     deps.Logger,
			},
			CreateClaim: commands.CreateClaimUseCase{
				Policies:       deps.Policies,
				Claims:         deps.Claims,
				Authorizer:     deps.Authorizer,
				Idempotency:    deps.Idempotency,
				Outbox:         deps.Outbox,
				Clock:          deps.Clock,
				IDGen:          deps.IDGen,
				IdempotencyTTL: deps.IdempotencyTTL,
				Logger:         deps.Logger,
			},
			VerifyClaim: commands.VerifyClaimUseCase{
				Policies:            deps.Policies,
				Claims:              deps.Claims,
				Authorizer:          deps.Authorizer,
				Conditions:          deps.Conditions,
				RequireVerifierRole: deps.RequireVerifierRole,
				Outbox:              deps.Outbox,
				Clock:               deps.Clock,
				IDGen:               deps.IDGen,
				Logger:              deps.Logger,
			},
			PayClaim: commands.PayClaimUseCase{
				Settlements: deps.Settlements,
				Transfers:   deps.Transfers,
				Outbox:      deps.Outbox,
				Clock:       deps.Clock,
				IDGen:       deps.IDGen,
				Logger:      deps.Logger,
			},
			CreatePool: commands.CreatePoolUseCase{
				Pools:      deps.Pools,
				Authorizer: deps.Authorizer,
				Outbox:     deps.Outbox,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Logger:     deps.Logger,
			},
			Stake: commands.StakeUseCase{
				Pools:     deps.Pools,
				Transfers: deps.Transfers,
				Outbox:    deps.Outbox,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			Withdraw: commands.WithdrawUseCase{
				Pools:     deps.Pools,
				Transfers: deps.Transfers,
				Outbox:    deps.Outbox,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			AdminWithdraw: commands.AdminWithdrawUseCase{
				Pools:      deps.Pools,
				Authorizer: deps.Authorizer,
				Transfers:  deps.Transfers,
				Outbox:     deps.Outbox,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Logger:     deps.Logger,
			},
			Policies: queries.PolicyQueryUseCase{
				Policies: deps.Policies,
				Claims:   deps.Claims,
			},
			Pools: queries.PoolQueryUseCase{
				Pools: deps.Pools,
				Clock: deps.Clock,
			},
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule wires every repository port to one in-process store.
// Authorization and funds transfer stay injected.
func NewInMemoryModule(authorizer ports.Authorizer, transfers ports.FundsTransfer, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Policies:       store,
		Claims:         store,
		Pools:          store,
		Settlements:    store,
		Idempotency:    store,
		Outbox:         store,
		Authorizer:     authorizer,
		Transfers:      transfers,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
