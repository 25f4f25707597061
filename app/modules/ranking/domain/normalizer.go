package rankingdomain

import (
	"fmt"
	"strings"
	"time"
)

// GameScore is one game's points for each side.
type GameScore struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

// RawMatchSubmission is a match as entered, before validation.
type RawMatchSubmission struct {
	MatchID     string      `json:"match_id"`
	Format      string      `json:"format"`
	AgeDivision string      `json:"age_division"`
	MatchType   string      `json:"match_type"`
	PlayedAt    time.Time   `json:"played_at"`
	Team1       []string    `json:"team1"`
	Team2       []string    `json:"team2"`
	Games       []GameScore `json:"games"`
}

// Side identifies one of the two sides of a match.
type Side int

const (
	Side1 Side = 0
	Side2 Side = 1
)

// Opponent returns the other side.
func (s Side) Opponent() Side { return 1 - s }

func (s Side) String() string { return fmt.Sprintf("team%d", int(s)+1) }

// MatchResult is a validated match with a single winning side.
type MatchResult struct {
	MatchID     string
	Format      PlayFormat
	AgeDivision AgeDivision
	MatchType   MatchType
	// PlayedAt is zero when the submission did not say.
	PlayedAt time.Time
	Sides    [2][]string
	Games    []GameScore
	GamesWon [2]int
	Winner   Side
}

// Participants returns every player with the side they played on.
func (m MatchResult) Participants() map[string]Side {
	out := make(map[string]Side, len(m.Sides[0])+len(m.Sides[1]))
	for side, players := range m.Sides {
		for _, p := range players {
			out[p] = Side(side)
		}
	}
	return out
}

// Won reports whether side won the match.
func (m MatchResult) Won(side Side) bool { return m.Winner == side }

// NormalizeMatch validates raw and returns its canonical form. It never
// resolves a tie: a level game fails with ErrInvalidGameScore and a level game
// count fails with ErrInvalidMatchResult.
func NormalizeMatch(raw RawMatchSubmission) (MatchResult, error) {
	matchID := strings.TrimSpace(raw.MatchID)
	if matchID == "" {
		return MatchResult{}, fmt.Errorf("%w: match id is required", ErrInvalidMatchResult)
	}

	format, err := ParsePlayFormat(raw.Format)
	if err != nil {
		return MatchResult{}, err
	}
	division, err := ParseAgeDivision(raw.AgeDivision)
	if err != nil {
		return MatchResult{}, err
	}
	matchType, err := ParseMatchType(raw.MatchType)
	if err != nil {
		return MatchResult{}, err
	}

	sides, err := normalizeSides(format, raw.Team1, raw.Team2)
	if err != nil {
		return MatchResult{}, err
	}

	if len(raw.Games) == 0 {
		return MatchResult{}, fmt.Errorf("%w: no games recorded", ErrInvalidMatchResult)
	}

	var won [2]int
	games := make([]GameScore, len(raw.Games))
	for i, g := range raw.Games {
		if g.Team1 < 0 || g.Team2 < 0 {
			return MatchResult{}, fmt.Errorf("%w: game %d has a negative score", ErrInvalidGameScore, i+1)
		}
		if g.Team1 == g.Team2 {
			return MatchResult{}, fmt.Errorf("%w: game %d is tied %d-%d", ErrInvalidGameScore, i+1, g.Team1, g.Team2)
		}
		if g.Team1 > g.Team2 {
			won[Side1]++
		} else {
			won[Side2]++
		}
		games[i] = g
	}

	if won[Side1] == won[Side2] {
		return MatchResult{}, fmt.Errorf("%w: games split %d-%d", ErrInvalidMatchResult, won[Side1], won[Side2])
	}
	winner := Side1
	if won[Side2] > won[Side1] {
		winner = Side2
	}

	return MatchResult{
		MatchID:     matchID,
		Format:      format,
		AgeDivision: division,
		MatchType:   matchType,
		PlayedAt:    raw.PlayedAt.UTC(),
		Sides:       sides,
		Games:       games,
		GamesWon:    won,
		Winner:      winner,
	}, nil
}

func normalizeSides(format PlayFormat, team1, team2 []string) ([2][]string, error) {
	var sides [2][]string
	seen := make(map[string]struct{}, len(team1)+len(team2))

	for i, team := range [2][]string{team1, team2} {
		if len(team) != format.SideSize() {
			return sides, fmt.Errorf("%w: %s needs %d player(s) per side, %s has %d",
				ErrInvalidMatchResult, format, format.SideSize(), Side(i), len(team))
		}
		players := make([]string, 0, len(team))
		for _, p := range team {
			p = strings.TrimSpace(p)
			if p == "" {
				return sides, fmt.Errorf("%w: empty player id on %s", ErrInvalidMatchResult, Side(i))
			}
			if _, dup := seen[p]; dup {
				return sides, fmt.Errorf("%w: player %s appears more than once", ErrInvalidMatchResult, p)
			}
			seen[p] = struct{}{}
			players = append(players, p)
		}
		sides[i] = players
	}
	return sides, nil
}
