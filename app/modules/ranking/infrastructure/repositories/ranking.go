package rankingdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// Impl implements Repository using bun.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new ranking repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

func (r *Impl) GetPlayer(ctx context.Context, db bun.IDB, playerID string) (*Player, error) {
	db = r.resolveDB(db)
	player := new(Player)
	err := db.NewSelect().
		Model(player).
		Where("player_id = ?", playerID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rankingdb.GetPlayer: %w", err)
	}
	return player, nil
}

func (r *Impl) GetPlayers(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]*Player, error) {
	out := make(map[string]*Player, len(playerIDs))
	if len(playerIDs) == 0 {
		return out, nil
	}
	db = r.resolveDB(db)
	var players []*Player
	err := db.NewSelect().
		Model(&players).
		Where("player_id IN (?)", bun.In(playerIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.GetPlayers: %w", err)
	}
	for _, p := range players {
		out[p.PlayerID] = p
	}
	return out, nil
}

func (r *Impl) UpsertPlayer(ctx context.Context, db bun.IDB, player *Player) error {
	db = r.resolveDB(db)
	player.UpdatedAt = time.Now().UTC()
	_, err := db.NewInsert().
		Model(player).
		On("CONFLICT (player_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("rating = EXCLUDED.rating").
		Set("gender = EXCLUDED.gender").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rankingdb.UpsertPlayer: %w", err)
	}
	return nil
}

func (r *Impl) ListPlayersWithMinRating(ctx context.Context, db bun.IDB, minRating float64) ([]Player, error) {
	db = r.resolveDB(db)
	var players []Player
	err := db.NewSelect().
		Model(&players).
		Where("rating >= ?", minRating).
		Order("player_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.ListPlayersWithMinRating: %w", err)
	}
	return players, nil
}

func (r *Impl) GetProcessedMatch(ctx context.Context, db bun.IDB, matchID string) (*ProcessedMatch, error) {
	db = r.resolveDB(db)
	match := new(ProcessedMatch)
	err := db.NewSelect().
		Model(match).
		Where("match_id = ?", matchID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rankingdb.GetProcessedMatch: %w", err)
	}
	return match, nil
}

func (r *Impl) InsertProcessedMatch(ctx context.Context, db bun.IDB, match *ProcessedMatch) error {
	db = r.resolveDB(db)
	if match.ProcessedAt.IsZero() {
		match.ProcessedAt = time.Now().UTC()
	}
	_, err := db.NewInsert().Model(match).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("rankingdb.InsertProcessedMatch: %w", err)
	}
	return nil
}

// RankingStore returns the entry store bound to db. Inside a transaction
// entries are read FOR UPDATE, so a concurrent submission from another
// process waits for the row until this transaction ends.
func (r *Impl) RankingStore(db bun.IDB) rankingaggregator.Store {
	_, inTx := db.(bun.Tx)
	return &entryStore{db: r.resolveDB(db), forUpdate: inTx}
}

// entryStore implements rankingaggregator.Store over ranking_entries and
// ranking_history. The version column carries the compare-and-swap.
type entryStore struct {
	db        bun.IDB
	forUpdate bool
}

func (s *entryStore) GetEntry(ctx context.Context, key rankingaggregator.EntryKey) (*rankingaggregator.Entry, error) {
	model := new(RankingEntry)
	query := s.db.NewSelect().
		Model(model).
		Where("player_id = ?", key.PlayerID).
		Where("format = ?", key.Format).
		Where("age_division = ?", key.AgeDivision).
		Where("tier_id = ?", key.TierID)
	if s.forUpdate {
		query = query.For("UPDATE")
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rankingaggregator.ErrEntryNotFound
		}
		return nil, fmt.Errorf("rankingdb.GetEntry: %w", err)
	}
	entry := model.toDomain()
	return &entry, nil
}

func (s *entryStore) CompareAndSwapEntry(ctx context.Context, next *rankingaggregator.Entry, expectedVersion int64) error {
	model := toEntryModel(next)

	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = s.db.NewInsert().
			Model(model).
			On("CONFLICT (player_id, format, age_division, tier_id) DO NOTHING").
			Exec(ctx)
	} else {
		res, err = s.db.NewUpdate().
			Model(model).
			ExcludeColumn("player_id", "format", "age_division", "tier_id").
			WherePK().
			Where("version = ?", expectedVersion).
			Exec(ctx)
	}
	if err != nil {
		return fmt.Errorf("rankingdb.CompareAndSwapEntry: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rankingdb.CompareAndSwapEntry: %w", err)
	}
	if rows == 0 {
		return rankingaggregator.ErrConcurrentUpdateConflict
	}
	return nil
}

func (s *entryStore) ListSlice(ctx context.Context, slice rankingaggregator.SliceKey) ([]rankingaggregator.Entry, error) {
	var models []RankingEntry
	err := s.db.NewSelect().
		Model(&models).
		Where("format = ?", slice.Format).
		Where("age_division = ?", slice.AgeDivision).
		Where("tier_id = ?", slice.TierID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.ListSlice: %w", err)
	}
	out := make([]rankingaggregator.Entry, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

func (s *entryStore) AppendHistory(ctx context.Context, entry *rankingaggregator.HistoryEntry) error {
	model := toHistoryModel(entry)
	if _, err := s.db.NewInsert().Model(model).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("rankingdb.AppendHistory: %w", err)
	}
	entry.ID = model.ID
	return nil
}

func (s *entryStore) ListHistory(ctx context.Context, q rankingaggregator.HistoryQuery, afterID int64, limit int) ([]rankingaggregator.HistoryEntry, error) {
	var models []HistoryRecord
	query := s.db.NewSelect().
		Model(&models).
		Where("player_id = ?", q.PlayerID).
		Where("id > ?", afterID).
		Order("id ASC")
	if q.Format != "" {
		query = query.Where("format = ?", q.Format)
	}
	if q.AgeDivision != "" {
		query = query.Where("age_division = ?", q.AgeDivision)
	}
	if !q.Since.IsZero() {
		query = query.Where("recorded_at >= ?", q.Since)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("rankingdb.ListHistory: %w", err)
	}
	out := make([]rankingaggregator.HistoryEntry, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

func (s *entryStore) CountMatchesBetween(ctx context.Context, from, to time.Time) (map[string]int, error) {
	var rows []struct {
		PlayerID string `bun:"player_id"`
		Matches  int    `bun:"matches"`
	}
	err := s.db.NewSelect().
		Model((*HistoryRecord)(nil)).
		Column("player_id").
		ColumnExpr("COUNT(*) AS matches").
		Where("played_at >= ?", from).
		Where("played_at < ?", to).
		Group("player_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.CountMatchesBetween: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.PlayerID] = r.Matches
	}
	return out, nil
}
