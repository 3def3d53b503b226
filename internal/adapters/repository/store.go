// Package repository defines the contest stores and the race-scoped unit of
// work used by the result workflow.
package repository

import (
	"context"

	"github.com/okian/velopick/internal/domain/model"
)

// RiderStore persists the rider registry.
type RiderStore interface {
	// CreateRiders inserts all riders or none. Returns ErrConflict on a
	// duplicate id.
	CreateRiders(ctx context.Context, riders ...model.Rider) error
	GetRider(ctx context.Context, id string) (model.Rider, error)
	// ListRiders orders by last name, first name, id.
	ListRiders(ctx context.Context) ([]model.Rider, error)
	DeleteRider(ctx context.Context, id string) error
}

// RaceStore persists races.
type RaceStore interface {
	CreateRace(ctx context.Context, race model.Race) error
	GetRace(ctx context.Context, id string) (model.Race, error)
	// ListRaces orders by date, then id.
	ListRaces(ctx context.Context) ([]model.Race, error)
	// DeleteRace removes the race with its setup, predictions, result and scores.
	DeleteRace(ctx context.Context, id string) error
}

// SetupStore persists candidate pools and head-to-head duels.
type SetupStore interface {
	PutSetup(ctx context.Context, setup model.RaceSetup) error
	// GetSetup returns an empty setup when none was configured.
	GetSetup(ctx context.Context, raceID string) (model.RaceSetup, error)
}

// PredictionStore persists at most one prediction per user and race.
type PredictionStore interface {
	// PutPrediction inserts or replaces the (UserID, RaceID) prediction.
	PutPrediction(ctx context.Context, p model.Prediction) error
	GetPrediction(ctx context.Context, raceID, userID string) (model.Prediction, error)
	// ListPredictions orders by user id.
	ListPredictions(ctx context.Context, raceID string) ([]model.Prediction, error)
}

// ResultStore reads committed results. Writes go through RaceTx.
type ResultStore interface {
	GetResult(ctx context.Context, raceID string) (model.ActualResult, error)
	// ResultRaceIDs lists races that have a result.
	ResultRaceIDs(ctx context.Context) ([]string, error)
}

// ScoreStore reads committed scores. Writes go through RaceTx.
type ScoreStore interface {
	ListScores(ctx context.Context) ([]model.Score, error)
	ListRaceScores(ctx context.Context, raceID string) ([]model.Score, error)
	GetScore(ctx context.Context, raceID, userID string) (model.Score, error)
}

// ParticipantStore persists display names.
type ParticipantStore interface {
	PutParticipant(ctx context.Context, p model.Participant) error
	ListParticipants(ctx context.Context) ([]model.Participant, error)
}

// RaceTx is the view of one race inside WithinRace. Writes become visible
// to other readers only when the surrounding function returns nil.
type RaceTx interface {
	Race() model.Race
	Setup(ctx context.Context) (model.RaceSetup, error)
	// Result returns ErrNotFound when the race has no result.
	Result(ctx context.Context) (model.ActualResult, error)
	PutResult(ctx context.Context, r model.ActualResult) error
	Predictions(ctx context.Context) ([]model.Prediction, error)
	DeleteScores(ctx context.Context) error
	InsertScores(ctx context.Context, scores []model.Score) error
}

// Store is the full persistence surface of the service.
type Store interface {
	RiderStore
	RaceStore
	SetupStore
	PredictionStore
	ResultStore
	ScoreStore
	ParticipantStore

	// WithinRace runs fn with exclusive access to raceID's result and score
	// rows. If fn returns an error nothing it wrote is kept. Returns
	// ErrNotFound when the race does not exist.
	WithinRace(ctx context.Context, raceID string, fn func(ctx context.Context, tx RaceTx) error) error

	Close() error
}
