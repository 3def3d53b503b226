// Command migrate manages the contest schema in Postgres.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	"github.com/okian/velopick/internal/adapters/repository/postgres/migrations"
	"github.com/okian/velopick/internal/config"
	"github.com/okian/velopick/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := newApp().Run(os.Args); err != nil {
		logger.Get().Error(context.Background(), "migrate failed", logger.Error(err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var db *bun.DB
	return &cli.App{
		Name:  "migrate",
		Usage: "velopick database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "postgres DSN; defaults to the loaded configuration",
				EnvVars: []string{"VELOPICK_POSTGRES_DSN"},
			},
		},
		Before: func(c *cli.Context) error {
			dsn := c.String("dsn")
			if dsn == "" {
				cfg, err := config.Load(c.Context)
				if err != nil {
					return err
				}
				dsn = cfg.PostgresDSN
			}
			if dsn == "" {
				return fmt.Errorf("%w: no postgres dsn", config.ErrInvalidConfig)
			}
			db = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())
			return nil
		},
		After: func(*cli.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
		Commands: commands(func() *migrate.Migrator {
			return migrate.NewMigrator(db, migrations.Migrations)
		}),
	}
}

// commands builds the subcommands; migrator is resolved lazily because the
// connection is opened in Before.
func commands(migrator func() *migrate.Migrator) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "init",
			Usage: "create migration tables",
			Action: func(c *cli.Context) error {
				return migrator().Init(c.Context)
			},
		},
		{
			Name:  "up",
			Usage: "apply pending migrations",
			Action: func(c *cli.Context) error {
				m := migrator()
				if err := m.Init(c.Context); err != nil {
					return err
				}
				if err := m.Lock(c.Context); err != nil {
					return err
				}
				defer m.Unlock(c.Context) //nolint:errcheck

				group, err := m.Migrate(c.Context)
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Println("no new migrations to run")
					return nil
				}
				fmt.Printf("migrated to %s\n", group)
				return nil
			},
		},
		{
			Name:  "rollback",
			Usage: "roll back the last migration group",
			Action: func(c *cli.Context) error {
				m := migrator()
				if err := m.Lock(c.Context); err != nil {
					return err
				}
				defer m.Unlock(c.Context) //nolint:errcheck

				group, err := m.Rollback(c.Context)
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Println("no groups to roll back")
					return nil
				}
				fmt.Printf("rolled back %s\n", group)
				return nil
			},
		},
		{
			Name:  "status",
			Usage: "print migrations status",
			Action: func(c *cli.Context) error {
				ms, err := migrator().MigrationsWithStatus(c.Context)
				if err != nil {
					return err
				}
				fmt.Printf("migrations: %s\n", ms)
				fmt.Printf("applied:    %s\n", ms.Applied())
				fmt.Printf("unapplied:  %s\n", ms.Unapplied())
				return nil
			},
		},
		{
			Name:      "create_go",
			Usage:     "create a Go migration",
			ArgsUsage: "name words...",
			Action: func(c *cli.Context) error {
				name := strings.Join(c.Args().Slice(), "_")
				if name == "" {
					return fmt.Errorf("migration name is required")
				}
				mf, err := migrator().CreateGoMigration(c.Context, name)
				if err != nil {
					return err
				}
				fmt.Printf("created migration %s (%s)\n", mf.Name, mf.Path)
				return nil
			},
		},
	}
}
