package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/okian/velopick/internal/adapters/repository/postgres"
)

const raceFK = `("race_id") REFERENCES "races" ("id") ON DELETE CASCADE`

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			plain := []interface{}{
				(*postgres.Rider)(nil),
				(*postgres.Race)(nil),
				(*postgres.Participant)(nil),
			}
			for _, m := range plain {
				if _, err := tx.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
					return err
				}
			}

			dependent := []interface{}{
				(*postgres.RaceSetup)(nil),
				(*postgres.Prediction)(nil),
				(*postgres.Result)(nil),
				(*postgres.Score)(nil),
			}
			for _, m := range dependent {
				if _, err := tx.NewCreateTable().Model(m).IfNotExists().ForeignKey(raceFK).Exec(ctx); err != nil {
					return err
				}
			}

			indexes := []string{
				`CREATE INDEX IF NOT EXISTS races_date_idx ON races (date, id)`,
				`CREATE INDEX IF NOT EXISTS riders_name_idx ON riders (last_name, first_name, id)`,
				`CREATE INDEX IF NOT EXISTS scores_user_idx ON scores (user_id)`,
			}
			for _, q := range indexes {
				if _, err := tx.NewRaw(q).Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			models := []interface{}{
				(*postgres.Score)(nil),
				(*postgres.Result)(nil),
				(*postgres.Prediction)(nil),
				(*postgres.RaceSetup)(nil),
				(*postgres.Participant)(nil),
				(*postgres.Race)(nil),
				(*postgres.Rider)(nil),
			}
			for _, m := range models {
				if _, err := tx.NewDropTable().Model(m).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
