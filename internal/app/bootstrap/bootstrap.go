package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	custodyledger "commonpool/contexts/finance-core/custody-ledger"
	custodypostgres "commonpool/contexts/finance-core/custody-ledger/adapters/postgres"
	mutualinsurance "commonpool/contexts/finance-core/mutual-insurance"
	"commonpool/contexts/finance-core/mutual-insurance/adapters/custodyhttp"
	insurancememory "commonpool/contexts/finance-core/mutual-insurance/adapters/memory"
	insurancepostgres "commonpool/contexts/finance-core/mutual-insurance/adapters/postgres"
	workerapp "commonpool/contexts/finance-core/mutual-insurance/application/workers"
	insuranceports "commonpool/contexts/finance-core/mutual-insurance/ports"
	authorization "commonpool/contexts/identity-access/authorization-service"
	authpostgres "commonpool/contexts/identity-access/authorization-service/adapters/postgres"
	"commonpool/internal/app/bridge"
	"commonpool/internal/platform/config"
	"commonpool/internal/platform/db"
	"commonpool/internal/platform/httpserver"
	"commonpool/internal/platform/messaging"
	"commonpool/internal/platform/metrics"
	platformotel "commonpool/internal/platform/otel"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const moduleName = "internal/app/bootstrap"

// runtime is the wired set of modules shared by the api and worker processes.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	postgres *db.Postgres
	metrics  *metrics.Metrics
	shutdown func(context.Context) error

	authorization authorization.Module
	custody       custodyledger.Module
	insurance     mutualinsurance.Module

	outbox insuranceports.OutboxRepository
	pools  insuranceports.PoolRepository
	clock  insuranceports.Clock
}

type APIApp struct {
	runtime *runtime
	server  *httpserver.Server
	// workers run in-process when state lives in memory, since a separate
	// worker process could not see it.
	workers *WorkerApp
}

type WorkerApp struct {
	runtime           *runtime
	outboxRelay       workerapp.OutboxRelay
	reconciler        workerapp.PoolReconciler
	outboxInterval    time.Duration
	reconcileInterval time.Duration
	logger            *slog.Logger
	ownsRuntime       bool
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return buildAPI(ctx, cfg, slog.Default().With("service", cfg.ServiceName, "process", "api"))
}

func buildAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (*APIApp, error) {
	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &APIApp{
		runtime: rt,
		server: httpserver.New(
			rt.insurance,
			rt.authorization,
			rt.custody,
			rt.metrics,
			logger,
			normalizeAddr(cfg.HTTPPort),
			httpserver.WithCustodyServiceToken(cfg.CustodyServiceToken),
		),
	}
	if cfg.StorageBackend == config.StorageMemory {
		app.workers = newWorkerApp(rt, false)
	}
	return app, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StorageBackend != config.StoragePostgres {
		return nil, errors.New("worker process requires STORAGE_BACKEND=postgres; the memory backend runs workers inside the api process")
	}
	rt, err := buildRuntime(ctx, cfg, slog.Default().With("service", cfg.ServiceName, "process", "worker"))
	if err != nil {
		return nil, err
	}
	return newWorkerApp(rt, true), nil
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	shutdown, err := platformotel.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(strings.ReplaceAll(cfg.ServiceName, "-", "_")),
		shutdown: shutdown,
	}

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		err = rt.wirePostgres(ctx)
	default:
		rt.wireMemory()
	}
	if err != nil {
		_ = rt.close(ctx)
		return nil, err
	}

	seeded, err := rt.authorization.SeedAdmins.Execute(ctx, cfg.BootstrapAdmins)
	if err != nil {
		_ = rt.close(ctx)
		return nil, err
	}
	logger.Info("runtime wired",
		"event", "bootstrap_runtime_wired",
		"module", moduleName,
		"layer", "platform",
		"storage_backend", cfg.StorageBackend,
		"custody_gateway", cfg.CustodyGatewayURL != "",
		"admins_seeded", seeded,
	)
	return rt, nil
}

func (rt *runtime) wireMemory() {
	rt.authorization = authorization.NewInMemoryModule(rt.logger)
	rt.custody = custodyledger.NewInMemoryModule(rt.logger)

	store := insurancememory.NewStore()
	rt.insurance = mutualinsurance.NewModule(rt.insuranceDependencies(mutualinsurance.Dependencies{
		Policies:    store,
		Claims:      store,
		Pools:       store,
		Settlements: store,
		Idempotency: store,
		Outbox:      store,
		Clock:       store,
		IDGen:       store,
	}))
	rt.insurance.Store = store
	rt.outbox = store
	rt.pools = store
	rt.clock = store
}

func (rt *runtime) wirePostgres(ctx context.Context) error {
	pg, err := db.Connect(ctx, rt.cfg.PostgresDSN)
	if err != nil {
		return err
	}
	rt.postgres = pg
	if rt.cfg.AutoMigrate {
		if err := pg.Migrate(authpostgres.Migrate, custodypostgres.Migrate, insurancepostgres.Migrate); err != nil {
			return err
		}
	}

	authRepo := authpostgres.NewRepository(pg.DB, rt.logger)
	rt.authorization = authorization.NewModule(authorization.Dependencies{
		Repository:  authRepo,
		Clock:       authpostgres.SystemClock{},
		IDGenerator: authpostgres.UUIDGenerator{},
		Logger:      rt.logger,
	})

	rt.custody = custodyledger.NewModule(custodyledger.Dependencies{
		Repository:  custodypostgres.NewRepository(pg.DB, rt.logger),
		Clock:       custodypostgres.SystemClock{},
		IDGenerator: custodypostgres.UUIDGenerator{},
		Logger:      rt.logger,
	})

	repo := insurancepostgres.NewRepository(pg.DB, rt.logger)
	clock := insurancepostgres.SystemClock{}
	rt.insurance = mutualinsurance.NewModule(rt.insuranceDependencies(mutualinsurance.Dependencies{
		Policies:    repo,
		Claims:      repo,
		Pools:       repo,
		Settlements: repo,
		Idempotency: repo,
		Outbox:      repo,
		Clock:       clock,
		IDGen:       insurancepostgres.UUIDGenerator{},
	}))
	rt.outbox = repo
	rt.pools = repo
	rt.clock = clock
	return nil
}

// insuranceDependencies fills the cross-module ports and configured policy
// knobs around the storage ports chosen by the backend.
func (rt *runtime) insuranceDependencies(deps mutualinsurance.Dependencies) mutualinsurance.Dependencies {
	deps.Authorizer = bridge.RoleAuthorizer{Roles: rt.authorization.Roles}
	deps.Transfers = rt.fundsTransfer()
	deps.IdempotencyTTL = rt.cfg.IdempotencyTTL
	deps.DefaultQuorum = rt.cfg.DefaultQuorum
	deps.RequireVerifierRole = rt.cfg.RequireVerifierRole
	deps.Logger = rt.logger
	return deps
}

func (rt *runtime) fundsTransfer() insuranceports.FundsTransfer {
	if strings.TrimSpace(rt.cfg.CustodyGatewayURL) == "" {
		return bridge.CustodyTransfers{Ledger: rt.custody.Service}
	}
	return custodyhttp.NewClient(custodyhttp.Config{
		BaseURL:          rt.cfg.CustodyGatewayURL,
		Timeout:          rt.cfg.CustodyGatewayTimeout,
		FailureThreshold: rt.cfg.CustodyBreakerFailures,
		OpenTimeout:      rt.cfg.CustodyBreakerOpenDelay,
		ServiceToken:     rt.cfg.CustodyServiceToken,
	}, &http.Client{Timeout: rt.cfg.CustodyGatewayTimeout}, rt.logger)
}

func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	if rt.shutdown != nil {
		errs = append(errs, rt.shutdown(ctx))
	}
	if rt.postgres != nil {
		errs = append(errs, rt.postgres.Close())
	}
	return errors.Join(errs...)
}

func newWorkerApp(rt *runtime, ownsRuntime bool) *WorkerApp {
	bus := messaging.NewBus(rt.cfg.BusBrokers, rt.logger)
	return &WorkerApp{
		runtime: rt,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    rt.outbox,
			Publisher: bus,
			Clock:     rt.clock,
			BatchSize: rt.cfg.OutboxBatchSize,
			Logger:    rt.logger,
		},
		reconciler: workerapp.PoolReconciler{
			Pools:    rt.pools,
			Observer: bridge.DriftGauge{Metrics: rt.metrics, Logger: rt.logger},
			Clock:    rt.clock,
			Logger:   rt.logger,
		},
		outboxInterval:    rt.cfg.OutboxPollInterval,
		reconcileInterval: rt.cfg.ReconcileInterval,
		logger:            rt.logger,
		ownsRuntime:       ownsRuntime,
	}
}

func (a *APIApp) Run(ctx context.Context) error {
	a.runtime.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", moduleName,
		"layer", "platform",
		"in_process_workers", a.workers != nil,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.workers != nil {
		group.Go(func() error { return a.workers.Run(groupCtx) })
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	return a.runtime.close(context.Background())
}

// Run drives the outbox relay and the pool reconciler on independent
// tickers until ctx is cancelled. A failed cycle is logged and retried on the
// next tick.
func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", moduleName,
		"layer", "platform",
		"outbox_interval", w.outboxInterval.String(),
		"reconcile_interval", w.reconcileInterval.String(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return w.loop(groupCtx, "outbox_relay", w.outboxInterval, w.outboxRelay.RunOnce)
	})
	group.Go(func() error {
		return w.loop(groupCtx, "pool_reconciler", w.reconcileInterval, func(ctx context.Context) error {
			_, err := w.reconciler.RunOnce(ctx)
			return err
		})
	})
	return group.Wait()
}

func (w *WorkerApp) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("worker cycle failed",
				"event", "bootstrap_worker_cycle_failed",
				"module", moduleName,
				"layer", "platform",
				"worker", name,
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if !w.ownsRuntime {
		return nil
	}
	return w.runtime.close(context.Background())
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
