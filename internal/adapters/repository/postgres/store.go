package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/pkg/logger"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store is a repository.Store backed by PostgreSQL.
type Store struct {
	db           *bun.DB
	log          logger.Logger
	maxOpenConns int
	queryMetrics bool
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn. The schema is expected to be migrated already.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	s := New(bun.NewDB(sqldb, pgdialect.New()), opts...)
	if err := s.db.PingContext(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s.log.Info(ctx, "postgres store connected", logger.Int("max_open_conns", s.maxOpenConns))
	return s, nil
}

// New wraps an existing bun database.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:           db,
		log:          logger.Get().Named("postgres"),
		queryMetrics: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if s.queryMetrics {
		db.AddQueryHook(metricsHook{})
	}
	return s
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *bun.DB { return s.db }

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

// mapErr converts driver errors to repository sentinels.
func mapErr(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", what, repository.ErrConflict)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func requireAffected(what string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateRiders(ctx context.Context, riders ...model.Rider) error {
	if len(riders) == 0 {
		return nil
	}
	rows := make([]*Rider, len(riders))
	for i, r := range riders {
		rows[i] = riderRow(r)
	}
	_, err := s.db.NewInsert().Model(&rows).Exec(ctx)
	return mapErr("create riders", err)
}

func (s *Store) GetRider(ctx context.Context, id string) (model.Rider, error) {
	var row Rider
	if err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		return model.Rider{}, mapErr("rider "+id, err)
	}
	return row.toModel(), nil
}

func (s *Store) ListRiders(ctx context.Context) ([]model.Rider, error) {
	var rows []Rider
	err := s.db.NewSelect().Model(&rows).
		Order("last_name ASC", "first_name ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list riders", err)
	}
	out := make([]model.Rider, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *Store) DeleteRider(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*Rider)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return mapErr("delete rider "+id, err)
	}
	return requireAffected("rider "+id, res)
}

func (s *Store) CreateRace(ctx context.Context, race model.Race) error {
	_, err := s.db.NewInsert().Model(raceRow(race)).Exec(ctx)
	return mapErr("race "+race.ID, err)
}

func (s *Store) GetRace(ctx context.Context, id string) (model.Race, error) {
	return getRace(ctx, s.db, id, false)
}

func getRace(ctx context.Context, db bun.IDB, id string, forUpdate bool) (model.Race, error) {
	var row Race
	q := db.NewSelect().Model(&row).Where("id = ?", id)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return model.Race{}, mapErr("race "+id, err)
	}
	return row.toModel(), nil
}

func (s *Store) ListRaces(ctx context.Context) ([]model.Race, error) {
	var rows []Race
	if err := s.db.NewSelect().Model(&rows).Order("date ASC", "id ASC").Scan(ctx); err != nil {
		return nil, mapErr("list races", err)
	}
	out := make([]model.Race, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// DeleteRace relies on ON DELETE CASCADE for the dependent tables.
func (s *Store) DeleteRace(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*Race)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return mapErr("delete race "+id, err)
	}
	return requireAffected("race "+id, res)
}

func (s *Store) PutSetup(ctx context.Context, setup model.RaceSetup) error {
	_, err := s.db.NewInsert().Model(setupRow(setup)).
		On("CONFLICT (race_id) DO UPDATE").
		Set("candidates = EXCLUDED.candidates").
		Set("h2h_rider_a = EXCLUDED.h2h_rider_a").
		Set("h2h_rider_b = EXCLUDED.h2h_rider_b").
		Exec(ctx)
	return mapErr("race "+setup.RaceID, err)
}

func (s *Store) GetSetup(ctx context.Context, raceID string) (model.RaceSetup, error) {
	return getSetup(ctx, s.db, raceID)
}

func getSetup(ctx context.Context, db bun.IDB, raceID string) (model.RaceSetup, error) {
	var row RaceSetup
	err := db.NewSelect().Model(&row).Where("race_id = ?", raceID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RaceSetup{RaceID: raceID}, nil
	}
	if err != nil {
		return model.RaceSetup{}, mapErr("setup "+raceID, err)
	}
	return row.toModel(), nil
}

func (s *Store) PutPrediction(ctx context.Context, p model.Prediction) error {
	_, err := s.db.NewInsert().Model(predictionRow(p)).
		On("CONFLICT (race_id, user_id) DO UPDATE").
		Set("top_picks = EXCLUDED.top_picks").
		Set("ranked_candidates = EXCLUDED.ranked_candidates").
		Set("head_to_head_pick = EXCLUDED.head_to_head_pick").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return mapErr("race "+p.RaceID, err)
}

func (s *Store) GetPrediction(ctx context.Context, raceID, userID string) (model.Prediction, error) {
	var row Prediction
	err := s.db.NewSelect().Model(&row).
		Where("race_id = ?", raceID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return model.Prediction{}, mapErr("prediction "+raceID+"/"+userID, err)
	}
	return row.toModel(), nil
}

func (s *Store) ListPredictions(ctx context.Context, raceID string) ([]model.Prediction, error) {
	return listPredictions(ctx, s.db, raceID)
}

func listPredictions(ctx context.Context, db bun.IDB, raceID string) ([]model.Prediction, error) {
	var rows []Prediction
	err := db.NewSelect().Model(&rows).Where("race_id = ?", raceID).Order("user_id ASC").Scan(ctx)
	if err != nil {
		return nil, mapErr("predictions "+raceID, err)
	}
	out := make([]model.Prediction, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *Store) GetResult(ctx context.Context, raceID string) (model.ActualResult, error) {
	return getResult(ctx, s.db, raceID)
}

func getResult(ctx context.Context, db bun.IDB, raceID string) (model.ActualResult, error) {
	var row Result
	if err := db.NewSelect().Model(&row).Where("race_id = ?", raceID).Scan(ctx); err != nil {
		return model.ActualResult{}, mapErr("result "+raceID, err)
	}
	return row.toModel(), nil
}

func (s *Store) ResultRaceIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().Model((*Result)(nil)).Column("race_id").Order("race_id ASC").Scan(ctx, &ids)
	if err != nil {
		return nil, mapErr("result races", err)
	}
	return ids, nil
}

func (s *Store) ListScores(ctx context.Context) ([]model.Score, error) {
	return s.scores(ctx, "")
}

func (s *Store) ListRaceScores(ctx context.Context, raceID string) ([]model.Score, error) {
	return s.scores(ctx, raceID)
}

func (s *Store) scores(ctx context.Context, raceID string) ([]model.Score, error) {
	var rows []Score
	q := s.db.NewSelect().Model(&rows).Order("race_id ASC", "user_id ASC")
	if raceID != "" {
		q = q.Where("race_id = ?", raceID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapErr("list scores", err)
	}
	out := make([]model.Score, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *Store) GetScore(ctx context.Context, raceID, userID string) (model.Score, error) {
	var row Score
	err := s.db.NewSelect().Model(&row).
		Where("race_id = ?", raceID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return model.Score{}, mapErr("score "+raceID+"/"+userID, err)
	}
	return row.toModel(), nil
}

func (s *Store) PutParticipant(ctx context.Context, p model.Participant) error {
	_, err := s.db.NewInsert().Model(&Participant{UserID: p.UserID, DisplayName: p.DisplayName}).
		On("CONFLICT (user_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Exec(ctx)
	return mapErr("participant "+p.UserID, err)
}

func (s *Store) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	var rows []Participant
	if err := s.db.NewSelect().Model(&rows).Order("user_id ASC").Scan(ctx); err != nil {
		return nil, mapErr("list participants", err)
	}
	out := make([]model.Participant, len(rows))
	for i, r := range rows {
		out[i] = model.Participant{UserID: r.UserID, DisplayName: r.DisplayName}
	}
	return out, nil
}

// WithinRace locks the race row for the duration of a transaction. Any
// error from fn rolls the transaction back.
func (s *Store) WithinRace(ctx context.Context, raceID string, fn func(ctx context.Context, tx repository.RaceTx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		race, err := getRace(ctx, tx, raceID, true)
		if err != nil {
			return err
		}
		return fn(ctx, &raceTx{tx: tx, race: race})
	})
}
