package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/courtrank/app"
	"github.com/Black-And-White-Club/courtrank/app/modules/ranking"
	rankingqueue "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/queue"
	rankingmigrations "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/courtrank/config"
	"github.com/Black-And-White-Club/courtrank/internal/observability"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "courtrank",
		Usage: "ranking points engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"COURTRANK_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			importCommand(),
			sweepCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the event router, HTTP API and activity sweep",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application := &app.App{}
			if err := application.Initialize(ctx, cfg); err != nil {
				_ = application.Close()
				return err
			}

			runErr := application.Run(ctx)
			stop()
			return errors.Join(runErr, application.Close())
		},
	}
}

func migrateCommand() *cli.Command {
	withMigrator := func(action func(ctx context.Context, m *migrate.Migrator, dsn string) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres.dsn (or DATABASE_URL) is required for migrations")
			}
			db := app.OpenDB(cfg.Postgres.DSN)
			defer db.Close()
			return action(c.Context, migrate.NewMigrator(db, rankingmigrations.Migrations), cfg.Postgres.DSN)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: withMigrator(func(ctx context.Context, m *migrate.Migrator, _ string) error {
					return m.Init(ctx)
				}),
			},
			{
				Name:  "migrate",
				Usage: "apply ranking and queue migrations",
				Action: withMigrator(func(ctx context.Context, m *migrate.Migrator, dsn string) error {
					if err := m.Lock(ctx); err != nil {
						return err
					}
					defer func() { _ = m.Unlock(ctx) }()

					group, err := m.Migrate(ctx)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Println("No new ranking migrations to run")
					} else {
						fmt.Printf("Migrated ranking tables to %s\n", group)
					}

					versions, err := rankingqueue.MigrateUp(ctx, dsn)
					if err != nil {
						return err
					}
					fmt.Printf("Applied river schema versions: %v\n", versions)
					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "roll back the last ranking migration group",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "queue", Usage: "roll back one river schema version instead"},
				},
				Action: func(c *cli.Context) error {
					return withMigrator(func(ctx context.Context, m *migrate.Migrator, dsn string) error {
						if c.Bool("queue") {
							versions, err := rankingqueue.MigrateDown(ctx, dsn)
							if err != nil {
								return err
							}
							fmt.Printf("Rolled back river schema versions: %v\n", versions)
							return nil
						}

						if err := m.Lock(ctx); err != nil {
							return err
						}
						defer func() { _ = m.Unlock(ctx) }()

						group, err := m.Rollback(ctx)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Println("No ranking groups to roll back")
						} else {
							fmt.Printf("Rolled back ranking group %s\n", group)
						}
						return nil
					})(c)
				},
			},
			{
				Name:  "status",
				Usage: "print migration status",
				Action: withMigrator(func(ctx context.Context, m *migrate.Migrator, dsn string) error {
					ms, err := m.MigrationsWithStatus(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("ranking migrations: %s\n", ms)
					fmt.Printf("unapplied: %s\n", ms.Unapplied())
					fmt.Printf("last group: %s\n", ms.LastGroup())

					versions, err := rankingqueue.SchemaVersions(ctx, dsn)
					if err != nil {
						return err
					}
					fmt.Printf("river schema versions: %v\n", versions)
					return nil
				}),
			},
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "submit every match in a CSV or XLSX sheet",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("import needs a sheet path")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres.dsn (or DATABASE_URL) is required for imports")
			}

			obs, err := observability.Init(c.Context, observability.Config{
				ServiceName: "courtrank-import",
				Environment: cfg.Observability.Environment,
				LogLevel:    cfg.Observability.LogLevel,
				Output:      os.Stderr,
			})
			if err != nil {
				return err
			}

			db := app.OpenDB(cfg.Postgres.DSN)
			defer db.Close()

			svc, err := ranking.NewService(c.Context, cfg, obs, db)
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open sheet: %w", err)
			}
			defer f.Close()

			report, importErr := svc.ImportMatches(c.Context, filepath.Base(path), f)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return importErr
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "enqueue an activity sweep for a running server to work",
		Flags: []cli.Flag{
			&cli.TimestampFlag{Name: "as-of", Layout: time.RFC3339, Usage: "sweep as of this time instead of now"},
			&cli.BoolFlag{Name: "list", Usage: "list recent sweeps instead of enqueueing one"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres.dsn (or DATABASE_URL) is required for the queue")
			}

			obs, err := observability.Init(c.Context, observability.Config{
				ServiceName: "courtrank-sweep",
				Environment: cfg.Observability.Environment,
				LogLevel:    cfg.Observability.LogLevel,
				Output:      os.Stderr,
			})
			if err != nil {
				return err
			}

			queue, err := rankingqueue.NewService(c.Context, cfg.Postgres.DSN, rankingqueue.Config{},
				obs.Provider.Logger, obs.Registry.RankingMetrics, nil, nil)
			if err != nil {
				return err
			}
			defer queue.Close()

			if c.Bool("list") {
				jobs, err := queue.RecentSweeps(c.Context, 20)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(jobs)
			}

			var asOf time.Time
			if ts := c.Timestamp("as-of"); ts != nil {
				asOf = *ts
			}
			id, err := queue.TriggerSweep(c.Context, asOf, "cli")
			if err != nil {
				return err
			}
			fmt.Printf("Enqueued activity sweep job %d\n", id)
			return nil
		},
	}
}
