package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/velopick/internal/adapters/eventbus"
	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/okian/velopick/pkg/logger"
	"github.com/okian/velopick/pkg/metrics"
)

// standingsCache holds the last built standings. gen moves on every
// invalidation so a build that raced with a write is never stored.
type standingsCache struct {
	mu    sync.Mutex
	gen   uint64
	valid bool
	rows  []leaderboard.Standing
}

func (c *standingsCache) invalidate() {
	c.mu.Lock()
	c.gen++
	c.valid = false
	c.rows = nil
	c.mu.Unlock()
}

func (c *standingsCache) get() ([]leaderboard.Standing, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows, c.gen, c.valid
}

func (c *standingsCache) put(gen uint64, rows []leaderboard.Standing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.rows = rows
		c.valid = true
	}
}

func (c *standingsCache) cached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

// Standings returns the full ranked leaderboard. The slice is shared with
// the cache and must not be modified.
func (s *Service) Standings(ctx context.Context) ([]leaderboard.Standing, error) {
	rows, gen, ok := s.standings.get()
	metrics.RecordStandingsCache(ok)
	if ok {
		return rows, nil
	}
	rows, err := s.buildStandings(ctx)
	if err != nil {
		return nil, err
	}
	s.standings.put(gen, rows)
	return rows, nil
}

func (s *Service) buildStandings(ctx context.Context) ([]leaderboard.Standing, error) {
	ctx, span := s.tracer.Start(ctx, "service.buildStandings")
	defer span.End()
	start := time.Now()

	scores, err := s.store.ListScores(ctx)
	if err != nil {
		return nil, err
	}
	races, err := s.store.ListRaces(ctx)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.UserID] = p.DisplayName
	}

	order := leaderboard.RaceOrder(races, leaderboard.ScoredRaces(scores))
	rows := leaderboard.WithDisplayNames(leaderboard.BuildStandings(scores, order), names)

	span.SetAttributes(attribute.Int("standings.participants", len(rows)), attribute.Int("standings.races", len(order)))
	metrics.RecordStandingsBuild(float64(time.Since(start).Microseconds())/1000, len(rows))
	return rows, nil
}

// warmStandings rebuilds the cache after a commit so the next read is a hit.
func (s *Service) warmStandings(ctx context.Context, ev eventbus.ScoresCommitted) error {
	if _, _, ok := s.standings.get(); ok {
		return nil
	}
	if _, err := s.Standings(ctx); err != nil {
		return fmt.Errorf("warm standings after %s: %w", ev.RaceID, err)
	}
	s.logger.Debug(ctx, "standings warmed", logger.String("race_id", ev.RaceID))
	return nil
}

// RaceScores lists the stored scores of one race.
func (s *Service) RaceScores(ctx context.Context, raceID string) ([]model.Score, error) {
	if _, err := s.store.GetRace(ctx, raceID); err != nil {
		return nil, err
	}
	return s.store.ListRaceScores(ctx, raceID)
}

// Detail explains a user's score for one race line by line. Stored is nil
// when the user has no score row for the race.
type Detail struct {
	scoring.Breakdown
	Stored *model.Score `json:"stored,omitempty"`
}

// ScoreDetail recomputes the breakdown with the same category functions
// the workflow uses.
func (s *Service) ScoreDetail(ctx context.Context, userID, raceID string) (Detail, error) {
	ctx, span := s.tracer.Start(ctx, "service.ScoreDetail", trace.WithAttributes(
		attribute.String("race.id", raceID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	race, err := s.store.GetRace(ctx, raceID)
	if err != nil {
		return Detail{}, err
	}
	result, err := s.store.GetResult(ctx, raceID)
	if errors.Is(err, repository.ErrNotFound) {
		return Detail{}, fmt.Errorf("race %s: %w", raceID, ErrNoResult)
	}
	if err != nil {
		return Detail{}, err
	}
	prediction, err := s.store.GetPrediction(ctx, raceID, userID)
	if err != nil {
		return Detail{}, err
	}
	setup, err := s.store.GetSetup(ctx, raceID)
	if err != nil {
		return Detail{}, err
	}
	rules, err := s.rulesFor(race)
	if err != nil {
		return Detail{}, err
	}

	b, err := scoring.Detail(prediction, scoring.ActualsFor(result, poolOf(setup)), rules)
	if err != nil {
		return Detail{}, err
	}
	out := Detail{Breakdown: b}
	stored, err := s.store.GetScore(ctx, raceID, userID)
	switch {
	case err == nil:
		out.Stored = &stored
	case !errors.Is(err, repository.ErrNotFound):
		return Detail{}, err
	}
	return out, nil
}
