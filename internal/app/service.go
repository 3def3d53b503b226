// Package service wires the contest stores, the scoring engine, the
// recompute workers and the event bus behind the operations used by the
// HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/velopick/internal/adapters/eventbus"
	eventqueue "github.com/okian/velopick/internal/adapters/mq/queue"
	workerpool "github.com/okian/velopick/internal/adapters/mq/worker"
	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/domain/dedupe"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/schedule"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/okian/velopick/pkg/logger"
	"github.com/okian/velopick/pkg/metrics"
)

const tracerName = "github.com/okian/velopick/internal/app"

// Service implements the contest operations.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	rules     scoring.Rules
	clock     schedule.Clock
	deadlines *schedule.DeadlineParser
	deduper   dedupe.Deduper
	tracer    trace.Tracer

	queue *eventqueue.InMemoryQueue
	pool  *workerpool.Pool
	bus   *eventbus.Bus

	scoringWorkers   int
	recomputeWorkers int
	queueSize        int
	dedupeSize       int

	standings standingsCache

	started bool
	logger  logger.Logger
}

// New constructs a Service over store. Registry, prediction and result
// operations work immediately; Start brings up the recompute workers and
// the event bus.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		rules:            scoring.DefaultRules(scoring.VariantExactOrTop3),
		clock:            schedule.SystemClock{},
		tracer:           otel.Tracer(tracerName),
		scoringWorkers:   runtime.NumCPU(),
		recomputeWorkers: 2,
		queueSize:        1000,
		dedupeSize:       10000,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.deadlines == nil {
		s.deadlines = schedule.NewDeadlineParser(time.UTC, s.clock)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start brings up the recompute queue, the worker pool and the event bus.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.rules.Validate(); err != nil {
		return fmt.Errorf("service rules: %w", err)
	}

	if s.bus == nil {
		bus, err := eventbus.New(eventbus.WithLogger(s.logger.Named("eventbus")))
		if err != nil {
			return fmt.Errorf("event bus: %w", err)
		}
		s.bus = bus
	}
	if err := s.bus.SubscribeScoresCommitted("standings-warmer", s.warmStandings); err != nil {
		return fmt.Errorf("subscribe standings warmer: %w", err)
	}
	if err := s.bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.recomputeWorkers, s.queue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "contest service started",
		logger.String("variant", s.rules.Variant.Short()),
		logger.Int("top_picks_size", s.rules.TopPicksSize),
		logger.Int("candidate_pool_size", s.rules.CandidatePoolSize),
		logger.Int("scoring_workers", s.scoringWorkers),
		logger.Int("recompute_workers", s.recomputeWorkers),
		logger.Int("queue_size", s.queueSize),
	)
	return nil
}

// Stop drains the workers and closes the bus. The store stays open; its
// owner closes it. The service lock is released before draining so that
// in-flight jobs can finish their commit.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	pool, bus := s.pool, s.bus
	s.started = false
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping contest service")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	if err := bus.Close(); err != nil {
		s.logger.Warn(ctx, "event bus close", logger.Error(err))
	}

	s.mu.Lock()
	if s.bus == bus {
		s.bus = nil
	}
	s.mu.Unlock()
	s.logger.Info(ctx, "contest service stopped")
}

// Rules returns the deployment-wide scoring rules.
func (s *Service) Rules() scoring.Rules { return s.rules }

// Idempotency returns the key cache shared by the API middleware.
func (s *Service) Idempotency() dedupe.Deduper { return s.deduper }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock.Now() }

// ParseDeadline turns administrator input into a UTC deadline.
func (s *Service) ParseDeadline(input string) (time.Time, error) {
	t, err := s.deadlines.Parse(input)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return t, nil
}

// rulesFor applies a race's variant override. A race on the deployment
// variant uses the configured rules; otherwise that variant's defaults with
// the configured top picks size.
func (s *Service) rulesFor(race model.Race) (scoring.Rules, error) {
	if race.RuleVariant == "" {
		return s.rules, nil
	}
	v, err := scoring.ParseVariant(race.RuleVariant)
	if err != nil {
		return scoring.Rules{}, fmt.Errorf("race %s: %w", race.ID, err)
	}
	if v == s.rules.Variant {
		return s.rules, nil
	}
	r := scoring.DefaultRules(v)
	r.TopPicksSize = s.rules.TopPicksSize
	return r, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":           s.started,
		"variant":           s.rules.Variant.Short(),
		"topPicksSize":      s.rules.TopPicksSize,
		"candidatePoolSize": s.rules.CandidatePoolSize,
		"scoringWorkers":    s.scoringWorkers,
		"recomputeWorkers":  s.recomputeWorkers,
		"queueSize":         s.queueSize,
		"idempotencyKeys":   s.deduper.Size(),
		"standingsCached":   s.standings.cached(),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["jobsProcessed"] = s.pool.Processed()
		stats["jobsFailed"] = s.pool.Failed()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()
	stats["goroutines"] = goroutines
	stats["heapAllocBytes"] = mem.HeapAlloc
	metrics.UpdateSystemGoroutineCount(goroutines)
	metrics.UpdateSystemMemoryUsage(mem.HeapAlloc)

	return stats
}
