package authorization

import (
	"log/slog"

	httpadapter "commonpool/contexts/identity-access/authorization-service/adapters/http"
	"commonpool/contexts/identity-access/authorization-service/adapters/memory"
	"commonpool/contexts/identity-access/authorization-service/application/commands"
	"commonpool/contexts/identity-access/authorization-service/application/queries"
	"commonpool/contexts/identity-access/authorization-service/ports"
)

// Module is the authorization-service composition root exposed to runtime wiring.
type Module struct {
	Handler    httpadapter.Handler
	Roles      queries.RoleQueryUseCase
	SeedAdmins commands.SeedAdminsUseCase
	Store      *memory.Store
}

// Dependencies captures all runtime ports required by NewModule.
type Dependencies struct {
	Repository  ports.Repository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	roles := queries.RoleQueryUseCase{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			AssignRole: commands.AssignRoleUseCase{
				Repository:  deps.Repository,
				Clock:       deps.Clock,
				IDGenerator: deps.IDGenerator,
				Logger:      deps.Logger,
			},
			Roles:  roles,
			Logger: deps.Logger,
		},
		Roles: roles,
		SeedAdmins: commands.SeedAdminsUseCase{
			Repository:  deps.Repository,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
	}
}

// NewInMemoryModule builds a development/testing module with in-memory adapters.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
