package rankingdb

import (
	"encoding/json"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	"github.com/uptrace/bun"
)

// Player is a participant profile. Points live in ranking entries.
type Player struct {
	bun.BaseModel `bun:"table:ranking_players,alias:rp"`

	PlayerID    string               `bun:"player_id,pk"`
	DisplayName string               `bun:"display_name"`
	Rating      float64              `bun:"rating,notnull,default:0"`
	Gender      rankingdomain.Gender `bun:"gender,notnull,default:''"`
	UpdatedAt   time.Time            `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// RankingEntry is one running total. TierID is empty for the overall slice.
type RankingEntry struct {
	bun.BaseModel `bun:"table:ranking_entries,alias:re"`

	PlayerID      string `bun:"player_id,pk"`
	Format        string `bun:"format,pk"`
	AgeDivision   string `bun:"age_division,pk"`
	TierID        string `bun:"tier_id,pk,default:''"`
	Points        int    `bun:"points,notnull,default:0"`
	MatchesPlayed int    `bun:"matches_played,notnull,default:0"`
	Wins          int    `bun:"wins,notnull,default:0"`
	Losses        int    `bun:"losses,notnull,default:0"`
	WinStreak     int    `bun:"win_streak,notnull,default:0"`

	AchievedAt  time.Time `bun:"achieved_at,notnull"`
	AchievedSeq int64     `bun:"achieved_seq,notnull,default:0"`
	Version     int64     `bun:"version,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// HistoryRecord is one append-only point change.
type HistoryRecord struct {
	bun.BaseModel `bun:"table:ranking_history,alias:rh"`

	ID             int64     `bun:"id,pk,autoincrement"`
	PlayerID       string    `bun:"player_id,notnull"`
	Format         string    `bun:"format,notnull"`
	AgeDivision    string    `bun:"age_division,notnull"`
	MatchID        string    `bun:"match_id,notnull"`
	Delta          int       `bun:"delta,notnull"`
	ResultingTotal int       `bun:"resulting_total,notnull"`
	Reason         string    `bun:"reason"`
	PlayedAt       time.Time `bun:"played_at,notnull"`
	RecordedAt     time.Time `bun:"recorded_at,notnull,default:current_timestamp"`
}

// ProcessedMatch marks a match id as applied. Outcome holds the serialized
// result returned to the original submitter.
type ProcessedMatch struct {
	bun.BaseModel `bun:"table:ranking_processed_matches,alias:pm"`

	MatchID        string          `bun:"match_id,pk"`
	SubmissionHash string          `bun:"submission_hash,notnull"`
	Outcome        json.RawMessage `bun:"outcome,type:jsonb,notnull"`
	ProcessedAt    time.Time       `bun:"processed_at,nullzero,notnull,default:current_timestamp"`
}

func toEntryModel(e *rankingaggregator.Entry) *RankingEntry {
	return &RankingEntry{
		PlayerID:      e.Key.PlayerID,
		Format:        string(e.Key.Format),
		AgeDivision:   string(e.Key.AgeDivision),
		TierID:        e.Key.TierID,
		Points:        int(e.Points),
		MatchesPlayed: e.MatchesPlayed,
		Wins:          e.Wins,
		Losses:        e.Losses,
		WinStreak:     e.WinStreak,
		AchievedAt:    e.AchievedAt,
		AchievedSeq:   e.AchievedSeq,
		Version:       e.Version,
		UpdatedAt:     e.UpdatedAt,
	}
}

func (m *RankingEntry) toDomain() rankingaggregator.Entry {
	return rankingaggregator.Entry{
		Key: rankingaggregator.EntryKey{
			PlayerID:    m.PlayerID,
			Format:      rankingdomain.PlayFormat(m.Format),
			AgeDivision: rankingdomain.AgeDivision(m.AgeDivision),
			TierID:      m.TierID,
		},
		Points:        rankingdomain.Points(m.Points),
		MatchesPlayed: m.MatchesPlayed,
		Wins:          m.Wins,
		Losses:        m.Losses,
		WinStreak:     m.WinStreak,
		AchievedAt:    m.AchievedAt,
		AchievedSeq:   m.AchievedSeq,
		Version:       m.Version,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toHistoryModel(h *rankingaggregator.HistoryEntry) *HistoryRecord {
	return &HistoryRecord{
		PlayerID:       h.PlayerID,
		Format:         string(h.Format),
		AgeDivision:    string(h.AgeDivision),
		MatchID:        h.MatchID,
		Delta:          int(h.Delta),
		ResultingTotal: int(h.ResultingTotal),
		Reason:         h.Reason,
		PlayedAt:       h.PlayedAt,
		RecordedAt:     h.RecordedAt,
	}
}

func (m *HistoryRecord) toDomain() rankingaggregator.HistoryEntry {
	return rankingaggregator.HistoryEntry{
		ID:             m.ID,
		PlayerID:       m.PlayerID,
		Format:         rankingdomain.PlayFormat(m.Format),
		AgeDivision:    rankingdomain.AgeDivision(m.AgeDivision),
		MatchID:        m.MatchID,
		Delta:          rankingdomain.Points(m.Delta),
		ResultingTotal: rankingdomain.Points(m.ResultingTotal),
		Reason:         m.Reason,
		PlayedAt:       m.PlayedAt,
		RecordedAt:     m.RecordedAt,
	}
}
