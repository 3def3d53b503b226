package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/velopick/internal/adapters/eventbus"
	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/okian/velopick/pkg/logger"
	"github.com/okian/velopick/pkg/metrics"
)

// CommitResult stores result for its race and replaces that race's scores
// in one unit of work. On any failure neither the result nor the scores
// change. Returns the new score rows ordered by user id.
func (s *Service) CommitResult(ctx context.Context, result model.ActualResult) ([]model.Score, error) {
	if err := result.Validate(); err != nil {
		return nil, err
	}
	result.EnteredAt = s.clock.Now().UTC()
	return s.commit(ctx, result.RaceID, &result, "commit")
}

// RecomputeRace re-runs scoring from the stored result.
func (s *Service) RecomputeRace(ctx context.Context, raceID string) ([]model.Score, error) {
	return s.commit(ctx, raceID, nil, "recompute")
}

// RecomputeAll queues a recompute of every race with a result. Returns the
// number of jobs queued.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.store.ResultRaceIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := s.enqueueRecompute(ctx, id, "recompute all"); err != nil {
			return i, err
		}
	}
	s.logger.Info(ctx, "recompute queued", logger.Int("races", len(ids)))
	return len(ids), nil
}

func (s *Service) enqueueRecompute(ctx context.Context, raceID, reason string) error {
	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	job := model.RecomputeJob{
		JobID:      uuid.NewString(),
		RaceID:     raceID,
		Reason:     reason,
		EnqueuedAt: s.clock.Now().UTC(),
	}
	if !q.Enqueue(ctx, job) {
		return fmt.Errorf("race %s: %w", raceID, ErrQueueFull)
	}
	return nil
}

// commit is the result workflow. replace is nil for a recompute.
func (s *Service) commit(ctx context.Context, raceID string, replace *model.ActualResult, kind string) (scores []model.Score, err error) {
	ctx, span := s.tracer.Start(ctx, "service.commit", trace.WithAttributes(
		attribute.String("race.id", raceID),
		attribute.String("commit.kind", kind),
	))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "rolled_back"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordResultCommit(outcome, float64(time.Since(start).Microseconds())/1000)
		span.End()
	}()

	err = s.store.WithinRace(ctx, raceID, func(ctx context.Context, tx repository.RaceTx) error {
		race := tx.Race()
		rules, err := s.rulesFor(race)
		if err != nil {
			return err
		}
		setup, err := tx.Setup(ctx)
		if err != nil {
			return err
		}

		var result model.ActualResult
		if replace != nil {
			if err := checkResult(*replace, setup); err != nil {
				return err
			}
			if err := tx.PutResult(ctx, *replace); err != nil {
				return err
			}
			result = *replace
		} else {
			result, err = tx.Result(ctx)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("race %s: %w", raceID, ErrNoResult)
			}
			if err != nil {
				return err
			}
		}

		predictions, err := tx.Predictions(ctx)
		if err != nil {
			return err
		}
		scores, err = s.scoreAll(ctx, predictions, scoring.ActualsFor(result, poolOf(setup)), rules)
		if err != nil {
			return err
		}
		if err := tx.DeleteScores(ctx); err != nil {
			return err
		}
		return tx.InsertScores(ctx, scores)
	})
	if err != nil {
		s.logger.Warn(ctx, "result workflow rolled back",
			logger.String("race_id", raceID),
			logger.String("kind", kind),
			logger.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("scores.count", len(scores)))
	metrics.RecordScoresWritten(len(scores))
	s.standings.invalidate()
	s.publishCommitted(ctx, raceID, scores)
	s.logger.Info(ctx, "race scored",
		logger.String("race_id", raceID),
		logger.String("kind", kind),
		logger.Int("scores", len(scores)),
		logger.Duration("took", time.Since(start)),
	)
	return scores, nil
}

// scoreAll scores predictions concurrently; the output keeps input order.
func (s *Service) scoreAll(ctx context.Context, predictions []model.Prediction, actual scoring.Actuals, rules scoring.Rules) ([]model.Score, error) {
	out := make([]model.Score, len(predictions))
	now := s.clock.Now().UTC()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.scoringWorkers)
	for i := range predictions {
		p := predictions[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sc, err := scoring.Score(p, actual, rules)
			if err != nil {
				return fmt.Errorf("score prediction of %s: %w", p.UserID, err)
			}
			sc.ComputedAt = now
			out[i] = sc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	metrics.RecordPredictionsScored(len(out))
	return out, nil
}

// checkResult ties a result to the race setup: the head-to-head winner must
// be a contender and an explicit candidate order may only rank the pool.
func checkResult(r model.ActualResult, setup model.RaceSetup) error {
	if r.HeadToHeadWinner != "" {
		if setup.HeadToHead == nil || !setup.HeadToHead.Has(r.HeadToHeadWinner) {
			return fmt.Errorf("%w: winner %s", ErrNotContender, r.HeadToHeadWinner)
		}
	}
	for rider := range r.CandidateOrder {
		if !setup.InPool(rider) {
			return fmt.Errorf("%w: %s in candidate order", ErrNotInPool, rider)
		}
	}
	return nil
}

func poolOf(setup model.RaceSetup) []string {
	if len(setup.Candidates) == 0 {
		return nil
	}
	return setup.Candidates
}

func (s *Service) publishCommitted(ctx context.Context, raceID string, scores []model.Score) {
	s.mu.RLock()
	bus := s.bus
	s.mu.RUnlock()
	if bus == nil {
		return
	}
	ev := eventbus.ScoresCommitted{RaceID: raceID, Scores: scores, CommittedAt: s.clock.Now().UTC()}
	if err := bus.PublishScoresCommitted(ctx, ev); err != nil {
		s.logger.Warn(ctx, "scores committed event not published",
			logger.String("race_id", raceID), logger.Error(err))
	}
}
