package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/okian/velopick/pkg/logger"
	"github.com/okian/velopick/pkg/metrics"
)

// SubmitPrediction validates p against the race's rules and setup and
// stores it, replacing the user's previous prediction for that race.
//
// Top picks must name known riders. A non-empty ranked list must order the
// whole candidate pool. A head-to-head pick must be one of the two
// contenders.
func (s *Service) SubmitPrediction(ctx context.Context, p model.Prediction) (model.Prediction, error) {
	stored, err := s.submitPrediction(ctx, p)
	if err != nil {
		metrics.RecordPredictionRejected(rejectReason(err))
		return model.Prediction{}, err
	}
	metrics.RecordPredictionSubmitted()
	s.logger.Debug(ctx, "prediction stored",
		logger.String("race_id", stored.RaceID),
		logger.String("user_id", stored.UserID),
		logger.Int("top_picks", len(stored.TopPicks)),
		logger.Int("ranked", len(stored.RankedCandidates)),
	)
	return stored, nil
}

func (s *Service) submitPrediction(ctx context.Context, p model.Prediction) (model.Prediction, error) {
	if p.UserID == "" {
		return model.Prediction{}, model.Invalidf("prediction: user id is required")
	}
	race, err := s.store.GetRace(ctx, p.RaceID)
	if err != nil {
		return model.Prediction{}, err
	}
	now := s.clock.Now()
	if !race.IsOpen(now) {
		return model.Prediction{}, fmt.Errorf("race %s closed at %s: %w",
			race.ID, race.RegistrationDeadline.Format("2006-01-02 15:04 MST"), ErrRegistrationClosed)
	}

	rules, err := s.rulesFor(race)
	if err != nil {
		return model.Prediction{}, err
	}
	if err := scoring.ValidatePrediction(p, rules); err != nil {
		return model.Prediction{}, err
	}

	picked := make([]string, len(p.TopPicks))
	for i, pick := range p.TopPicks {
		picked[i] = pick.RiderID
	}
	if err := s.requireRiders(ctx, picked...); err != nil {
		return model.Prediction{}, err
	}

	setup, err := s.store.GetSetup(ctx, race.ID)
	if err != nil {
		return model.Prediction{}, err
	}
	if err := checkRanked(p.RankedCandidates, setup); err != nil {
		return model.Prediction{}, err
	}
	if p.HeadToHeadPick != "" {
		if setup.HeadToHead == nil || !setup.HeadToHead.Has(p.HeadToHeadPick) {
			return model.Prediction{}, fmt.Errorf("%w: %s", ErrNotContender, p.HeadToHeadPick)
		}
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UpdatedAt = now.UTC()
	if err := s.store.PutPrediction(ctx, p); err != nil {
		return model.Prediction{}, err
	}
	return p, nil
}

// checkRanked requires a non-empty ranked list to be a permutation of the
// candidate pool with positions 1..len(pool).
func checkRanked(ranked []model.RankedPick, setup model.RaceSetup) error {
	if len(ranked) == 0 {
		return nil
	}
	if len(setup.Candidates) == 0 {
		return model.Invalidf("race %s has no candidate pool", setup.RaceID)
	}
	if len(ranked) != len(setup.Candidates) {
		return model.Invalidf("ranked list has %d candidates, pool has %d", len(ranked), len(setup.Candidates))
	}
	for _, r := range ranked {
		if !setup.InPool(r.RiderID) {
			return fmt.Errorf("%w: %s", ErrNotInPool, r.RiderID)
		}
		if r.PredictedPosition > len(setup.Candidates) {
			return fmt.Errorf("%w: candidate %s at %d, pool has %d",
				scoring.ErrPositionOutOfRange, r.RiderID, r.PredictedPosition, len(setup.Candidates))
		}
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrRegistrationClosed):
		return "closed"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// GetPrediction returns one user's prediction for a race.
func (s *Service) GetPrediction(ctx context.Context, raceID, userID string) (model.Prediction, error) {
	return s.store.GetPrediction(ctx, raceID, userID)
}

// ListRacePredictions returns every prediction of a race once its
// registration has closed.
func (s *Service) ListRacePredictions(ctx context.Context, raceID string) ([]model.Prediction, error) {
	race, err := s.store.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if race.IsOpen(s.clock.Now()) {
		return nil, ErrPredictionsHidden
	}
	return s.store.ListPredictions(ctx, raceID)
}
