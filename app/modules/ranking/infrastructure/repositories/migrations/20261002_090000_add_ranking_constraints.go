package rankingmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Adding ranking constraints...")
		_, err := db.ExecContext(ctx, `
			ALTER TABLE ranking_players
				DROP CONSTRAINT IF EXISTS chk_ranking_players_rating,
				ADD CONSTRAINT chk_ranking_players_rating CHECK (rating >= 0 AND rating <= 9);
			ALTER TABLE ranking_entries
				DROP CONSTRAINT IF EXISTS chk_ranking_entries_points,
				ADD CONSTRAINT chk_ranking_entries_points CHECK (points >= 0);
		`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping ranking constraints...")
		_, err := db.ExecContext(ctx, `
			ALTER TABLE ranking_entries DROP CONSTRAINT IF EXISTS chk_ranking_entries_points;
			ALTER TABLE ranking_players DROP CONSTRAINT IF EXISTS chk_ranking_players_rating;
		`)
		return err
	})
}
