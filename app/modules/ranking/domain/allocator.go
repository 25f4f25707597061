package rankingdomain

import (
	"fmt"
	"math"
	"sort"
)

const (
	// BaseWinPoints and BaseLossPoints are the fixed points before multipliers.
	BaseWinPoints  Points = 3
	BaseLossPoints Points = 1

	// EliteThreshold is the accumulated total at which the gender-balance
	// bonus stops applying.
	EliteThreshold Points = 1000

	SinglesGenderBonus      = 1.15
	MixedDoublesGenderBonus = 1.075
)

// ParticipantContext is what the allocator needs to know about a player
// beyond the match itself.
type ParticipantContext struct {
	Rating float64
	Gender Gender
	// CurrentTotal is the player's accumulated total in the match's
	// (format, division) slice.
	CurrentTotal Points
	// WinStreak is the number of consecutive wins before this match.
	WinStreak int
}

// PointsAllocation records how one participant's point change was derived.
type PointsAllocation struct {
	PlayerID              string       `json:"player_id"`
	MatchID               string       `json:"match_id"`
	Format                PlayFormat   `json:"format"`
	AgeDivision           AgeDivision  `json:"age_division"`
	Side                  Side         `json:"side"`
	Won                   bool         `json:"won"`
	BasePoints            Points       `json:"base_points"`
	AgeMultiplier         float64      `json:"age_multiplier"`
	TournamentMultiplier  float64      `json:"tournament_multiplier"`
	GenderBonusMultiplier float64      `json:"gender_bonus_multiplier"`
	UpsetMultiplier       float64      `json:"upset_multiplier"`
	BaseComponent         Points       `json:"base_component"`
	TierCategory          TierCategory `json:"tier_category"`
	TierID                string       `json:"tier_id,omitempty"`
	TierModifierDelta     Points       `json:"tier_modifier_delta"`
	StreakBonus           Points       `json:"streak_bonus"`
	FinalPoints           Points       `json:"final_points"`
	// WinStreak is the streak after this match.
	WinStreak   int      `json:"win_streak"`
	ReasonTrail []string `json:"reason_trail"`
}

// AllocatePoints computes one allocation per participant of match. It is a
// pure function of its arguments. Allocations are returned ordered by player id.
func AllocatePoints(match MatchResult, participants map[string]ParticipantContext, resolver *TierResolver) ([]PointsAllocation, error) {
	ageMult, err := match.AgeDivision.AgeMultiplier()
	if err != nil {
		return nil, err
	}
	tournamentMult, err := match.MatchType.TournamentMultiplier()
	if err != nil {
		return nil, err
	}

	roster := match.Participants()
	resolutions := make(map[string]TierResolution, len(roster))
	for playerID := range roster {
		pc, ok := participants[playerID]
		if !ok {
			return nil, fmt.Errorf("%w: no context for player %s", ErrInvalidMatchResult, playerID)
		}
		res, err := resolver.Resolve(pc.Rating)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", playerID, err)
		}
		resolutions[playerID] = res
	}

	var strongest [2]TierCategory
	for side, players := range match.Sides {
		strongest[side] = TierBeginner
		for _, p := range players {
			if c := resolutions[p].Category; c > strongest[side] {
				strongest[side] = c
			}
		}
	}

	genderBonus := genderBonuses(match, participants)

	playerIDs := make([]string, 0, len(roster))
	for p := range roster {
		playerIDs = append(playerIDs, p)
	}
	sort.Strings(playerIDs)

	out := make([]PointsAllocation, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		side := roster[playerID]
		pc := participants[playerID]
		res := resolutions[playerID]
		rules := res.Rules
		won := match.Won(side)

		a := PointsAllocation{
			PlayerID:              playerID,
			MatchID:               match.MatchID,
			Format:                match.Format,
			AgeDivision:           match.AgeDivision,
			Side:                  side,
			Won:                   won,
			AgeMultiplier:         ageMult,
			TournamentMultiplier:  tournamentMult,
			GenderBonusMultiplier: 1.0,
			UpsetMultiplier:       1.0,
			TierCategory:          res.Category,
			TierID:                res.Tier.ID,
		}
		reason := func(format string, args ...any) {
			a.ReasonTrail = append(a.ReasonTrail, fmt.Sprintf(format, args...))
		}

		if won {
			a.BasePoints = BaseWinPoints
		} else {
			a.BasePoints = BaseLossPoints
		}
		reason("base %d for a %s", a.BasePoints, outcome(won))
		reason("%s division x%.2f", match.AgeDivision, ageMult)
		reason("%s match x%.1f", match.MatchType, tournamentMult)
		if res.Fallback {
			reason("no tier catalog, intermediate rules applied")
		}

		if bonus, ok := genderBonus[playerID]; ok {
			if pc.CurrentTotal < EliteThreshold {
				a.GenderBonusMultiplier = bonus
				reason("gender balance bonus x%.3f", bonus)
			} else {
				reason("gender balance bonus withheld at %d points", pc.CurrentTotal)
			}
		}

		raw := float64(a.BasePoints) * ageMult * tournamentMult * a.GenderBonusMultiplier

		switch {
		case won:
			if res.Category < strongest[side.Opponent()] {
				a.UpsetMultiplier = rules.UpsetBonusMultiplier
				raw *= a.UpsetMultiplier
				reason("upset over %s x%.1f", strongest[side.Opponent()], a.UpsetMultiplier)
			}
			a.BaseComponent = roundPoints(raw)

			a.TierModifierDelta = rules.ConsistencyBonus
			reason("%s consistency bonus +%d", res.Category, rules.ConsistencyBonus)

			a.WinStreak = pc.WinStreak + 1
			if rules.StreakBonusThreshold > 0 && a.WinStreak >= rules.StreakBonusThreshold {
				a.StreakBonus = rules.StreakBonusPoints
				a.TierModifierDelta += rules.StreakBonusPoints
				reason("%d-match win streak +%d", a.WinStreak, rules.StreakBonusPoints)
			}

		case !rules.AllowPointLoss:
			a.BaseComponent = roundPoints(raw)
			reason("%s tier protects against point loss", res.Category)

		default:
			loss := roundPoints(float64(a.BasePoints) * rules.PointLossMultiplier * ageMult * tournamentMult)
			if loss > rules.MaxPointLossPerMatch {
				loss = rules.MaxPointLossPerMatch
				reason("loss capped at %d", rules.MaxPointLossPerMatch)
			}
			if loss > pc.CurrentTotal {
				loss = max(pc.CurrentTotal, 0)
				reason("loss limited to current total %d", pc.CurrentTotal)
			}
			a.TierModifierDelta = -loss
			reason("%s tier loss -%d", res.Category, loss)
		}

		a.FinalPoints = a.BaseComponent + a.TierModifierDelta
		reason("final %+d", a.FinalPoints)
		out = append(out, a)
	}

	return out, nil
}

// genderBonuses returns the balance multiplier for each eligible beneficiary,
// before the elite threshold is checked.
func genderBonuses(match MatchResult, participants map[string]ParticipantContext) map[string]float64 {
	out := map[string]float64{}

	switch match.Format {
	case FormatSingles:
		p1, p2 := match.Sides[Side1][0], match.Sides[Side2][0]
		g1, g2 := participants[p1].Gender, participants[p2].Gender
		if g1 == GenderUnspecified || g2 == GenderUnspecified || g1 == g2 {
			return out
		}
		if g1 == GenderFemale {
			out[p1] = SinglesGenderBonus
		} else {
			out[p2] = SinglesGenderBonus
		}

	case FormatMixed:
		for _, players := range match.Sides {
			if !isMixedPair(players, participants) {
				return out
			}
		}
		for _, players := range match.Sides {
			for _, p := range players {
				if participants[p].Gender == GenderFemale {
					out[p] = MixedDoublesGenderBonus
				}
			}
		}
	}
	return out
}

func isMixedPair(players []string, participants map[string]ParticipantContext) bool {
	var male, female bool
	for _, p := range players {
		switch participants[p].Gender {
		case GenderMale:
			male = true
		case GenderFemale:
			female = true
		}
	}
	return male && female
}

// roundPoints rounds half away from zero.
func roundPoints(v float64) Points {
	return Points(math.Round(v))
}

func outcome(won bool) string {
	if won {
		return "win"
	}
	return "loss"
}
