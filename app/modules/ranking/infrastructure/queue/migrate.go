package rankingqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// MigrateUp applies every pending River schema migration and returns the
// versions applied.
func MigrateUp(ctx context.Context, dsn string) ([]int, error) {
	return migrate(ctx, dsn, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{})
}

// MigrateDown rolls back the newest River schema migration.
func MigrateDown(ctx context.Context, dsn string) ([]int, error) {
	return migrate(ctx, dsn, rivermigrate.DirectionDown, &rivermigrate.MigrateOpts{MaxSteps: 1})
}

// SchemaVersions returns the applied River schema versions.
func SchemaVersions(ctx context.Context, dsn string) ([]int, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create river migrator: %w", err)
	}
	existing, err := migrator.ExistingVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read river schema versions: %w", err)
	}

	out := make([]int, 0, len(existing))
	for _, m := range existing {
		out = append(out, m.Version)
	}
	return out, nil
}

func migrate(ctx context.Context, dsn string, direction rivermigrate.Direction, opts *rivermigrate.MigrateOpts) ([]int, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, direction, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to run river migrations (%s): %w", direction, err)
	}

	out := make([]int, 0, len(res.Versions))
	for _, v := range res.Versions {
		out = append(out, v.Version)
	}
	return out, nil
}
