package service

import (
	"github.com/okian/velopick/internal/adapters/eventbus"
	"github.com/okian/velopick/internal/domain/schedule"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/okian/velopick/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRules sets the deployment-wide scoring rules.
func WithRules(r scoring.Rules) Option {
	return func(s *Service) {
		s.rules = r
	}
}

// WithScoringWorkers bounds how many predictions are scored concurrently
// during a commit.
func WithScoringWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoringWorkers = n
		}
	}
}

// WithRecomputeWorkers sets the worker pool size.
func WithRecomputeWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recomputeWorkers = n
		}
	}
}

// WithQueueSize sets the recompute queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock replaces the wall clock used for deadlines and timestamps.
func WithClock(c schedule.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDeadlineParser sets the parser for human-entered deadlines.
func WithDeadlineParser(p *schedule.DeadlineParser) Option {
	return func(s *Service) {
		if p != nil {
			s.deadlines = p
		}
	}
}

// WithEventBus injects a bus instead of creating one on Start. The service
// still registers its handlers and starts it.
func WithEventBus(b *eventbus.Bus) Option {
	return func(s *Service) {
		s.bus = b
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
