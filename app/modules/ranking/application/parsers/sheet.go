package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Column names of an import sheet. The header row may list them in any order
// and case.
const (
	ColMatchID     = "match_id"
	ColFormat      = "format"
	ColAgeDivision = "age_division"
	ColMatchType   = "match_type"
	ColPlayedAt    = "played_at"
	ColTeam1       = "team1"
	ColTeam2       = "team2"
	ColScores      = "scores"
)

var requiredColumns = []string{ColMatchID, ColFormat, ColAgeDivision, ColMatchType, ColTeam1, ColTeam2, ColScores}

// SheetRow is one data row. Err is set when the row could not be read into
// a submission; the other rows are still usable.
type SheetRow struct {
	Row        int
	Submission rankingdomain.RawMatchSubmission
	Err        error
}

// ParsedSheet is the content of one import file.
type ParsedSheet struct {
	Rows []SheetRow
}

var (
	playerSeparators = regexp.MustCompile(`\s*[/;&+]\s*`)
	gameSeparators   = regexp.MustCompile(`[\s,]+`)
	gameScore        = regexp.MustCompile(`^(\d+)\s*[-:]\s*(\d+)$`)
)

// buildSheet maps records (header first) onto submissions.
func buildSheet(records [][]string, now time.Time) (*ParsedSheet, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet is empty")
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	cell := func(record []string, col string) string {
		i, ok := columns[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	sheet := &ParsedSheet{}
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		row := SheetRow{Row: i + 2}

		sub := rankingdomain.RawMatchSubmission{
			MatchID:     cell(record, ColMatchID),
			Format:      cell(record, ColFormat),
			AgeDivision: cell(record, ColAgeDivision),
			MatchType:   cell(record, ColMatchType),
			Team1:       splitPlayers(cell(record, ColTeam1)),
			Team2:       splitPlayers(cell(record, ColTeam2)),
		}

		games, err := parseGames(cell(record, ColScores))
		if err != nil {
			row.Err = err
		}
		sub.Games = games

		if raw := cell(record, ColPlayedAt); raw != "" && row.Err == nil {
			playedAt, err := ParsePlayedAt(raw, now)
			if err != nil {
				row.Err = err
			}
			sub.PlayedAt = playedAt
		}

		row.Submission = sub
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func splitPlayers(s string) []string {
	if s == "" {
		return nil
	}
	return playerSeparators.Split(s, -1)
}

// parseGames reads "11-7 9-11 11-5" style scores.
func parseGames(s string) ([]rankingdomain.GameScore, error) {
	if s == "" {
		return nil, fmt.Errorf("scores are empty")
	}
	var games []rankingdomain.GameScore
	for _, tok := range gameSeparators.Split(s, -1) {
		if tok == "" {
			continue
		}
		m := gameScore.FindStringSubmatch(tok)
		if m == nil {
			return nil, fmt.Errorf("unreadable game score %q", tok)
		}
		t1, _ := strconv.Atoi(m[1])
		t2, _ := strconv.Atoi(m[2])
		games = append(games, rankingdomain.GameScore{Team1: t1, Team2: t2})
	}
	return games, nil
}

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006",
}

// ParsePlayedAt reads an absolute timestamp or a natural-language one such
// as "yesterday at 6pm", resolved against now. Times without a zone are UTC.
func ParsePlayedAt(s string, now time.Time) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(strings.ToLower(s), now)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not read played_at %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not read played_at %q", s)
	}
	return r.Time.UTC(), nil
}
