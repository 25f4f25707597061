package rankingdomain

import (
	"fmt"
	"strings"
)

// Points is a whole number of ranking points.
type Points int

// PlayFormat is the kind of match played.
type PlayFormat string

const (
	FormatSingles PlayFormat = "singles"
	FormatDoubles PlayFormat = "doubles"
	FormatMixed   PlayFormat = "mixed"
)

// AgeDivision is a competition bracket by minimum age.
type AgeDivision string

const (
	Division19Plus AgeDivision = "19plus"
	Division35Plus AgeDivision = "35plus"
	Division50Plus AgeDivision = "50plus"
	Division60Plus AgeDivision = "60plus"
	Division70Plus AgeDivision = "70plus"
)

// MatchType distinguishes sanctioned tournament play from casual play.
type MatchType string

const (
	MatchCasual     MatchType = "casual"
	MatchTournament MatchType = "tournament"
)

// Gender is used only by the gender-balance bonus.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = ""
)

// AgeDivisions lists the divisions ordered by minimum age.
var AgeDivisions = []AgeDivision{Division19Plus, Division35Plus, Division50Plus, Division60Plus, Division70Plus}

// PlayFormats lists every format.
var PlayFormats = []PlayFormat{FormatSingles, FormatDoubles, FormatMixed}

var ageMultipliers = map[AgeDivision]float64{
	Division19Plus: 1.0,
	Division35Plus: 1.2,
	Division50Plus: 1.3,
	Division60Plus: 1.5,
	Division70Plus: 1.6,
}

var tournamentMultipliers = map[MatchType]float64{
	MatchCasual:     1.0,
	MatchTournament: 2.0,
}

// SideSize is the number of players per side for the format.
func (f PlayFormat) SideSize() int {
	if f == FormatSingles {
		return 1
	}
	return 2
}

func (f PlayFormat) Valid() bool {
	switch f {
	case FormatSingles, FormatDoubles, FormatMixed:
		return true
	}
	return false
}

// MinimumAge returns the lower age bound encoded in the division.
func (d AgeDivision) MinimumAge() int {
	var age int
	_, _ = fmt.Sscanf(string(d), "%dplus", &age)
	return age
}

// AgeMultiplier returns the fixed multiplier for the division.
func (d AgeDivision) AgeMultiplier() (float64, error) {
	m, ok := ageMultipliers[d]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAgeDivision, string(d))
	}
	return m, nil
}

// TournamentMultiplier returns 2.0 for tournaments and 1.0 for casual matches.
func (t MatchType) TournamentMultiplier() (float64, error) {
	m, ok := tournamentMultipliers[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMatchType, string(t))
	}
	return m, nil
}

// ParsePlayFormat accepts the format name in any case.
func ParsePlayFormat(s string) (PlayFormat, error) {
	f := PlayFormat(normalizeToken(s))
	if f == "mixed_doubles" || f == "mixeddoubles" {
		f = FormatMixed
	}
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlayFormat, s)
	}
	return f, nil
}

// ParseAgeDivision accepts "35plus", "35+" or "35".
func ParseAgeDivision(s string) (AgeDivision, error) {
	tok := normalizeToken(s)
	tok = strings.TrimSuffix(strings.TrimSuffix(tok, "plus"), "+")
	d := AgeDivision(tok + "plus")
	if _, ok := ageMultipliers[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgeDivision, s)
	}
	return d, nil
}

// ParseMatchType accepts "casual" or "tournament" in any case.
func ParseMatchType(s string) (MatchType, error) {
	t := MatchType(normalizeToken(s))
	if _, ok := tournamentMultipliers[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMatchType, s)
	}
	return t, nil
}

// ParseGender maps free text onto Gender; anything unrecognised is unspecified.
func ParseGender(s string) Gender {
	switch normalizeToken(s) {
	case "male", "m", "man":
		return GenderMale
	case "female", "f", "woman":
		return GenderFemale
	default:
		return GenderUnspecified
	}
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "_").Replace(s)
}
