package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/okian/velopick/internal/adapters/repository"
	"github.com/okian/velopick/internal/domain/model"
)

type raceTx struct {
	tx   bun.Tx
	race model.Race
}

var _ repository.RaceTx = (*raceTx)(nil)

func (t *raceTx) Race() model.Race { return t.race }

func (t *raceTx) Setup(ctx context.Context) (model.RaceSetup, error) {
	return getSetup(ctx, t.tx, t.race.ID)
}

func (t *raceTx) Result(ctx context.Context) (model.ActualResult, error) {
	return getResult(ctx, t.tx, t.race.ID)
}

func (t *raceTx) PutResult(ctx context.Context, r model.ActualResult) error {
	if r.RaceID != t.race.ID {
		return fmt.Errorf("result for race %s written in race %s: %w", r.RaceID, t.race.ID, model.ErrValidation)
	}
	_, err := t.tx.NewInsert().Model(resultRow(r)).
		On("CONFLICT (race_id) DO UPDATE").
		Set("finish_positions = EXCLUDED.finish_positions").
		Set("candidate_order = EXCLUDED.candidate_order").
		Set("head_to_head_winner = EXCLUDED.head_to_head_winner").
		Set("entered_at = EXCLUDED.entered_at").
		Exec(ctx)
	return mapErr("result "+r.RaceID, err)
}

func (t *raceTx) Predictions(ctx context.Context) ([]model.Prediction, error) {
	return listPredictions(ctx, t.tx, t.race.ID)
}

func (t *raceTx) DeleteScores(ctx context.Context) error {
	_, err := t.tx.NewDelete().Model((*Score)(nil)).Where("race_id = ?", t.race.ID).Exec(ctx)
	return mapErr("delete scores "+t.race.ID, err)
}

func (t *raceTx) InsertScores(ctx context.Context, scores []model.Score) error {
	if len(scores) == 0 {
		return nil
	}
	rows := make([]Score, len(scores))
	for i, sc := range scores {
		if sc.RaceID != t.race.ID {
			return fmt.Errorf("score for race %s written in race %s: %w", sc.RaceID, t.race.ID, model.ErrValidation)
		}
		rows[i] = scoreRow(sc)
	}
	_, err := t.tx.NewInsert().Model(&rows).Exec(ctx)
	return mapErr("insert scores "+t.race.ID, err)
}
