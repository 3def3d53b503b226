package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/adapters/sheets"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/scoring"
	"github.com/okian/velopick/pkg/logger"
)

// CreateRider stores one rider. A missing id is derived from the name.
func (s *Service) CreateRider(ctx context.Context, r model.Rider) (model.Rider, error) {
	r = normalizeRider(r)
	if err := r.Validate(); err != nil {
		return model.Rider{}, err
	}
	if err := s.store.CreateRiders(ctx, r); err != nil {
		return model.Rider{}, err
	}
	return r, nil
}

// ImportRiders parses a rider list (text lines or an .xlsx workbook) and
// stores every rider, or none when any id already exists.
func (s *Service) ImportRiders(ctx context.Context, data []byte) ([]model.Rider, error) {
	riders, err := sheets.ParseRiders(data)
	if err != nil {
		if errors.Is(err, sheets.ErrEmptyImport) || errors.Is(err, sheets.ErrBadWorkbook) {
			return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
		return nil, err
	}
	seen := make(map[string]struct{}, len(riders))
	for i := range riders {
		riders[i] = normalizeRider(riders[i])
		if err := riders[i].Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[riders[i].ID]; dup {
			return nil, fmt.Errorf("rider %s listed twice: %w", riders[i].ID, repository.ErrConflict)
		}
		seen[riders[i].ID] = struct{}{}
	}
	if err := s.store.CreateRiders(ctx, riders...); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "riders imported", logger.Int("count", len(riders)))
	return riders, nil
}

func normalizeRider(r model.Rider) model.Rider {
	r.ID = strings.TrimSpace(r.ID)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Team = strings.TrimSpace(r.Team)
	r.Nationality = strings.ToUpper(strings.TrimSpace(r.Nationality))
	if r.ID == "" {
		r.ID = r.Slug()
	}
	return r
}

func (s *Service) ListRiders(ctx context.Context) ([]model.Rider, error) {
	return s.store.ListRiders(ctx)
}

func (s *Service) DeleteRider(ctx context.Context, id string) error {
	return s.store.DeleteRider(ctx, id)
}

// CreateRace stores a race. The rule variant override is normalized to its
// short name.
func (s *Service) CreateRace(ctx context.Context, race model.Race) (model.Race, error) {
	race.ID = strings.TrimSpace(race.ID)
	race.Name = strings.TrimSpace(race.Name)
	if err := race.Validate(); err != nil {
		return model.Race{}, err
	}
	if race.RuleVariant != "" {
		v, err := scoring.ParseVariant(race.RuleVariant)
		if err != nil {
			return model.Race{}, fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
		race.RuleVariant = v.Short()
	}
	race.Date = race.Date.UTC()
	race.RegistrationDeadline = race.RegistrationDeadline.UTC()
	if err := s.store.CreateRace(ctx, race); err != nil {
		return model.Race{}, err
	}
	return race, nil
}

func (s *Service) GetRace(ctx context.Context, id string) (model.Race, error) {
	return s.store.GetRace(ctx, id)
}

func (s *Service) ListRaces(ctx context.Context) ([]model.Race, error) {
	return s.store.ListRaces(ctx)
}

// DeleteRace removes the race and everything hanging off it.
func (s *Service) DeleteRace(ctx context.Context, id string) error {
	if err := s.store.DeleteRace(ctx, id); err != nil {
		return err
	}
	s.standings.invalidate()
	return nil
}

// ConfigureRace replaces the candidate pool and head-to-head duel. Every
// rider must exist. When the race already has a result its scores are
// recomputed before returning; if that fails the previous setup is restored.
func (s *Service) ConfigureRace(ctx context.Context, setup model.RaceSetup) (model.RaceSetup, error) {
	race, err := s.store.GetRace(ctx, setup.RaceID)
	if err != nil {
		return model.RaceSetup{}, err
	}
	rules, err := s.rulesFor(race)
	if err != nil {
		return model.RaceSetup{}, err
	}
	if err := setup.Validate(rules.CandidatePoolSize); err != nil {
		return model.RaceSetup{}, err
	}

	ids := append([]string(nil), setup.Candidates...)
	if setup.HeadToHead != nil {
		ids = append(ids, setup.HeadToHead.RiderA, setup.HeadToHead.RiderB)
	}
	if err := s.requireRiders(ctx, ids...); err != nil {
		return model.RaceSetup{}, err
	}
	previous, prevErr := s.store.GetSetup(ctx, race.ID)
	if err := s.store.PutSetup(ctx, setup); err != nil {
		return model.RaceSetup{}, err
	}

	// A scored race is rescored against the new pool before returning.
	if _, err := s.store.GetResult(ctx, race.ID); err == nil {
		if _, err := s.RecomputeRace(ctx, race.ID); err != nil {
			if prevErr == nil {
				if rerr := s.store.PutSetup(ctx, previous); rerr != nil {
					s.logger.Error(ctx, "setup not restored after failed rescore",
						logger.String("race_id", race.ID), logger.Error(rerr))
				}
			}
			return model.RaceSetup{}, fmt.Errorf("rescore race %s: %w", race.ID, err)
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.RaceSetup{}, err
	}
	return setup, nil
}

func (s *Service) GetSetup(ctx context.Context, raceID string) (model.RaceSetup, error) {
	if _, err := s.store.GetRace(ctx, raceID); err != nil {
		return model.RaceSetup{}, err
	}
	return s.store.GetSetup(ctx, raceID)
}

// UpsertParticipant sets a display name.
func (s *Service) UpsertParticipant(ctx context.Context, p model.Participant) (model.Participant, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.UserID == "" {
		return model.Participant{}, model.Invalidf("participant: user id is required")
	}
	if p.DisplayName == "" {
		return model.Participant{}, model.Invalidf("participant %s: display name is required", p.UserID)
	}
	if err := s.store.PutParticipant(ctx, p); err != nil {
		return model.Participant{}, err
	}
	s.standings.invalidate()
	return p, nil
}

func (s *Service) requireRiders(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := s.store.GetRider(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownRider, id)
			}
			return err
		}
	}
	return nil
}
