package rankingmigrations

import (
	"context"
	"database/sql"
	"fmt"

	rankingdb "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating ranking tables...")

		return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			models := []any{
				(*rankingdb.Player)(nil),
				(*rankingdb.RankingEntry)(nil),
				(*rankingdb.HistoryRecord)(nil),
				(*rankingdb.ProcessedMatch)(nil),
			}
			for _, model := range models {
				if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
					return fmt.Errorf("failed to create table for %T: %w", model, err)
				}
			}

			indexes := []string{
				// leaderboard reads scan one slice
				`CREATE INDEX IF NOT EXISTS idx_ranking_entries_slice
					ON ranking_entries (format, age_division, tier_id, points DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_ranking_history_player
					ON ranking_history (player_id, id)`,
				`CREATE INDEX IF NOT EXISTS idx_ranking_history_played_at
					ON ranking_history (played_at)`,
				`CREATE INDEX IF NOT EXISTS idx_ranking_players_rating
					ON ranking_players (rating)`,
			}
			for _, stmt := range indexes {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}

			fmt.Println("Ranking tables created successfully!")
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping ranking tables...")

		models := []any{
			(*rankingdb.ProcessedMatch)(nil),
			(*rankingdb.HistoryRecord)(nil),
			(*rankingdb.RankingEntry)(nil),
			(*rankingdb.Player)(nil),
		}
		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
		}

		fmt.Println("Ranking tables dropped successfully!")
		return nil
	})
}
