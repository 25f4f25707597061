package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	rankingqueue "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/queue"
	rankingmigrations "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/courtrank/integration_tests/containers"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// rankingTables are truncated between tests.
var rankingTables = []string{"ranking_players", "ranking_entries", "ranking_history", "ranking_processed_matches"}

// TestEnvironment holds the containers shared by one test package.
type TestEnvironment struct {
	PgContainer   *postgres.PostgresContainer
	NatsContainer *nats.NATSContainer
	DB            *bun.DB
	DSN           string
	NatsURL       string
}

// NewTestEnvironment starts Postgres, applies every migration and, when
// withNATS is set, starts a NATS server.
func NewTestEnvironment(ctx context.Context, withNATS bool) (*TestEnvironment, error) {
	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return nil, err
	}
	env := &TestEnvironment{PgContainer: pgContainer, DSN: dsn}

	env.DB = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())
	if err := runMigrations(ctx, env.DB, dsn); err != nil {
		env.Terminate(ctx)
		return nil, err
	}

	if withNATS {
		natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
		if err != nil {
			env.Terminate(ctx)
			return nil, err
		}
		env.NatsContainer = natsContainer
		env.NatsURL = natsURL
	}
	return env, nil
}

func runMigrations(ctx context.Context, db *bun.DB, dsn string) error {
	migrator := migrate.NewMigrator(db, rankingmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run ranking migrations: %w", err)
	}
	log.Printf("Ran ranking migrations group #%d", group.ID)

	if _, err := rankingqueue.MigrateUp(ctx, dsn); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}

// Reset truncates the ranking tables and clears River jobs.
func (env *TestEnvironment) Reset(ctx context.Context) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(rankingTables, ", "))
	if _, err := env.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	if _, err := env.DB.ExecContext(ctx, "DELETE FROM river_job"); err != nil {
		return fmt.Errorf("failed to clear river jobs: %w", err)
	}
	return nil
}

// Terminate closes the database and stops every container.
func (env *TestEnvironment) Terminate(ctx context.Context) {
	if env.DB != nil {
		_ = env.DB.Close()
	}
	if env.NatsContainer != nil {
		if err := env.NatsContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate NATS container: %v", err)
		}
	}
	if env.PgContainer != nil {
		if err := env.PgContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate Postgres container: %v", err)
		}
	}
}
