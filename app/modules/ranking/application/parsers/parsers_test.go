package parsers

import (
	"bytes"
	"testing"
	"time"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestFactory_GetParser(t *testing.T) {
	factory := NewFactory()
	tests := []struct {
		name     string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "csv file", filename: "matches.csv", want: "csv"},
		{name: "upper case extension", filename: "MATCHES.CSV", want: "csv"},
		{name: "xlsx file", filename: "matches.xlsx", want: "xlsx"},
		{name: "unsupported file", filename: "matches.txt", wantErr: true},
		{name: "no extension", filename: "matches", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := factory.GetParser(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			switch tt.want {
			case "csv":
				_, ok := parser.(*CSVParser)
				require.True(t, ok)
			case "xlsx":
				_, ok := parser.(*XLSXParser)
				require.True(t, ok)
			default:
				t.Fatalf("unexpected parser type %q", tt.want)
			}
		})
	}
}

func TestCSVParser_Parse(t *testing.T) {
	parser := &CSVParser{now: fixedClock}

	data := "Match_ID,Format,Age_Division,Match_Type,Played_At,Team1,Team2,Scores\n" +
		"m1,singles,19plus,casual,2026-06-01T18:00:00Z,alice,bob,11-7 11-9\n" +
		",,,,,,,\n" +
		"m2,doubles,35+,tournament,2026-06-02,alice / carol,bob / dave,\"11-5, 9-11, 11-8\"\n" +
		"m3,singles,19plus,casual,,alice,bob,eleven-seven\n"

	sheet, err := parser.Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 3)

	first := sheet.Rows[0]
	assert.Equal(t, 2, first.Row)
	assert.NoError(t, first.Err)
	assert.Equal(t, "m1", first.Submission.MatchID)
	assert.Equal(t, []string{"alice"}, first.Submission.Team1)
	assert.Equal(t, []rankingdomain.GameScore{{Team1: 11, Team2: 7}, {Team1: 11, Team2: 9}}, first.Submission.Games)
	assert.Equal(t, time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC), first.Submission.PlayedAt)

	second := sheet.Rows[1]
	assert.Equal(t, 4, second.Row)
	assert.NoError(t, second.Err)
	assert.Equal(t, []string{"alice", "carol"}, second.Submission.Team1)
	assert.Equal(t, []string{"bob", "dave"}, second.Submission.Team2)
	assert.Len(t, second.Submission.Games, 3)
	assert.Equal(t, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), second.Submission.PlayedAt)

	third := sheet.Rows[2]
	assert.Equal(t, 5, third.Row)
	assert.ErrorContains(t, third.Err, "unreadable game score")
	assert.Equal(t, "m3", third.Submission.MatchID)
}

func TestCSVParser_MissingColumn(t *testing.T) {
	parser := &CSVParser{now: fixedClock}
	_, err := parser.Parse([]byte("match_id,format\nm1,singles\n"))
	assert.ErrorContains(t, err, "missing column")

	_, err = parser.Parse(nil)
	assert.Error(t, err)
}

func TestXLSXParser_Parse(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"match_id", "format", "age_division", "match_type", "played_at", "team1", "team2", "scores"},
		{"x1", "mixed", "50plus", "casual", "2026-05-30 09:30", "ann/ben", "cat/dan", "11-8 11-6"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	parsed, err := (&XLSXParser{now: fixedClock}).Parse(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)

	row := parsed.Rows[0]
	assert.NoError(t, row.Err)
	assert.Equal(t, "x1", row.Submission.MatchID)
	assert.Equal(t, "mixed", row.Submission.Format)
	assert.Equal(t, []string{"ann", "ben"}, row.Submission.Team1)
	assert.Equal(t, time.Date(2026, 5, 30, 9, 30, 0, 0, time.UTC), row.Submission.PlayedAt)
}

func TestXLSXParser_RejectsNonZip(t *testing.T) {
	_, err := NewXLSXParser().Parse([]byte("match_id,format\n"))
	assert.ErrorContains(t, err, "Hint")
}

func TestParsePlayedAt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", input: "2026-06-01T10:00:00+02:00", want: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)},
		{name: "date only", input: "2026-06-01", want: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{name: "us date", input: "06/01/2026", want: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{name: "natural language", input: "yesterday", want: fixedNow.AddDate(0, 0, -1)},
		{name: "garbage", input: "sometime soonish", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlayedAt(tt.input, fixedNow)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.name == "natural language" {
				assert.Equal(t, tt.want.YearDay(), got.YearDay())
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
