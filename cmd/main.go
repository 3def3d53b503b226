package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/velopick/internal/adapters/http/api"
	"github.com/okian/velopick/internal/adapters/http/swagger"
	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/adapters/repository/postgres"
	"github.com/okian/velopick/internal/adapters/repository/postgres/migrations"
	app "github.com/okian/velopick/internal/app"
	"github.com/okian/velopick/internal/config"
	"github.com/okian/velopick/internal/domain/schedule"
	"github.com/okian/velopick/pkg/logger"
	"github.com/okian/velopick/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Only the service registry is exposed; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "velopick exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn(ctx, "store close", logger.Error(err))
		}
	}()

	svc, err := newService(cfg, store)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop(context.WithoutCancel(ctx))

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore returns the configured backend and its close function. The
// postgres schema is migrated before the store is handed out.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func() error, error) {
	if cfg.Storage != config.StoragePostgres {
		return repository.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithQueryMetrics(true))
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	group, err := migrations.Up(ctx, store.DB())
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if !group.IsZero() {
		logger.Get().Info(ctx, "schema migrated", logger.String("group", group.String()))
	}
	return store, store.Close, nil
}

func newService(cfg *config.Config, store repository.Store) (*app.Service, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := schedule.SystemClock{}
	return app.New(store,
		app.WithRules(rules),
		app.WithClock(clock),
		app.WithDeadlineParser(schedule.NewDeadlineParser(loc, clock)),
		app.WithScoringWorkers(cfg.ScoringWorkers),
		app.WithRecomputeWorkers(cfg.RecomputeWorkers),
		app.WithQueueSize(cfg.RecomputeQueueSize),
		app.WithDedupeSize(cfg.IdempotencyCacheSize),
		app.WithLogger(logger.Get().Named("service")),
	), nil
}

func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service) chi.Router {
	r := chi.NewRouter()
	api.NewServer(svc, svc,
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithMaxStandingsLimit(cfg.MaxStandingsLimit),
	).Register(ctx, r)
	swagger.Register(ctx, r)
	return r
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workers, ok := stats["recomputeWorkers"].(int); ok {
		metrics.UpdateWorkerCount(workers)
	}
}
