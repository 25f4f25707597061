package rankingdomain

import (
	"fmt"
	"math"
	"sort"
)

// MaxRating is the top of the rating scale.
const MaxRating = 9.0

// TierCategory is the closed set of rule categories.
type TierCategory int

const (
	TierBeginner TierCategory = iota
	TierIntermediate
	TierAdvanced
	TierElite
)

func (c TierCategory) String() string {
	switch c {
	case TierBeginner:
		return "beginner"
	case TierIntermediate:
		return "intermediate"
	case TierAdvanced:
		return "advanced"
	case TierElite:
		return "elite"
	default:
		return fmt.Sprintf("TierCategory(%d)", int(c))
	}
}

// TierRuleBundle holds the modifiers applied to players of one category.
type TierRuleBundle struct {
	AllowPointLoss         bool
	PointLossMultiplier    float64
	MaxPointLossPerMatch   Points
	RequiresMinimumMatches bool
	MinimumMatchesPerMonth int
	ConsistencyBonus       Points
	UpsetBonusMultiplier   float64
	// FastTrackMultiplier is informational only; allocation does not read it.
	FastTrackMultiplier    float64
	StreakBonusThreshold   int
	StreakBonusPoints      Points
}

// tierRules is read-only after package initialisation. Callers only ever
// receive copies.
var tierRules = [...]TierRuleBundle{
	TierBeginner: {
		ConsistencyBonus:     2,
		UpsetBonusMultiplier: 1.1,
		FastTrackMultiplier:  2.0,
		StreakBonusThreshold: 2,
		StreakBonusPoints:    10,
	},
	TierIntermediate: {
		ConsistencyBonus:     5,
		UpsetBonusMultiplier: 1.2,
		FastTrackMultiplier:  1.5,
		StreakBonusThreshold: 3,
		StreakBonusPoints:    15,
	},
	TierAdvanced: {
		AllowPointLoss:         true,
		PointLossMultiplier:    0.5,
		MaxPointLossPerMatch:   25,
		RequiresMinimumMatches: true,
		MinimumMatchesPerMonth: 4,
		ConsistencyBonus:       7,
		UpsetBonusMultiplier:   1.3,
		FastTrackMultiplier:    1.2,
		StreakBonusThreshold:   5,
		StreakBonusPoints:      30,
	},
	TierElite: {
		AllowPointLoss:         true,
		PointLossMultiplier:    1.0,
		MaxPointLossPerMatch:   50,
		RequiresMinimumMatches: true,
		MinimumMatchesPerMonth: 8,
		ConsistencyBonus:       10,
		UpsetBonusMultiplier:   1.5,
		FastTrackMultiplier:    1.0,
		StreakBonusThreshold:   7,
		StreakBonusPoints:      50,
	},
}

// Rules returns the bundle for the category. Unknown categories get the
// intermediate bundle.
func (c TierCategory) Rules() TierRuleBundle {
	if c < TierBeginner || c > TierElite {
		return tierRules[TierIntermediate]
	}
	return tierRules[c]
}

// CategoryForRating maps a rating onto its category using the fixed
// breakpoints 4.5, 7.2 and 8.1.
func CategoryForRating(rating float64) TierCategory {
	switch {
	case rating >= 8.1:
		return TierElite
	case rating >= 7.2:
		return TierAdvanced
	case rating >= 4.5:
		return TierIntermediate
	default:
		return TierBeginner
	}
}

// MinRating returns the lowest rating that maps onto the category.
func (c TierCategory) MinRating() float64 {
	switch c {
	case TierElite:
		return 8.1
	case TierAdvanced:
		return 7.2
	case TierIntermediate:
		return 4.5
	default:
		return 0
	}
}

// ValidateRating rejects ratings outside [0, 9].
func ValidateRating(rating float64) error {
	if math.IsNaN(rating) || rating < 0 || rating > MaxRating {
		return fmt.Errorf("%w: %v", ErrInvalidRating, rating)
	}
	return nil
}

// RatingTier is one catalog entry covering [MinRating, MaxRating).
type RatingTier struct {
	ID              string  `json:"id" yaml:"id"`
	Name            string  `json:"name" yaml:"name"`
	MinRating       float64 `json:"min_rating" yaml:"min_rating"`
	MaxRating       float64 `json:"max_rating" yaml:"max_rating"`
	ProtectionLevel int     `json:"protection_level" yaml:"protection_level"`
	DisplayOrder    int     `json:"display_order" yaml:"display_order"`
}

// TierCatalog is an ordered, gap-free, non-overlapping set of tiers covering
// [0, 9]. It is immutable once built.
type TierCatalog struct {
	tiers []RatingTier
}

// NewTierCatalog validates tiers and returns them ordered by MinRating.
func NewTierCatalog(tiers []RatingTier) (*TierCatalog, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTierCatalog)
	}

	sorted := make([]RatingTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinRating < sorted[j].MinRating })

	ids := make(map[string]struct{}, len(sorted))
	for i, t := range sorted {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: tier %q has no id", ErrInvalidTierCatalog, t.Name)
		}
		if _, dup := ids[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate tier id %q", ErrInvalidTierCatalog, t.ID)
		}
		ids[t.ID] = struct{}{}

		if t.MaxRating <= t.MinRating {
			return nil, fmt.Errorf("%w: tier %q has an empty range", ErrInvalidTierCatalog, t.ID)
		}
		if i == 0 && t.MinRating != 0 {
			return nil, fmt.Errorf("%w: lowest tier %q starts at %v, not 0", ErrInvalidTierCatalog, t.ID, t.MinRating)
		}
		if i > 0 && sorted[i-1].MaxRating != t.MinRating {
			return nil, fmt.Errorf("%w: tiers %q and %q do not meet", ErrInvalidTierCatalog, sorted[i-1].ID, t.ID)
		}
	}
	if last := sorted[len(sorted)-1]; last.MaxRating < MaxRating {
		return nil, fmt.Errorf("%w: highest tier %q ends at %v, below %v", ErrInvalidTierCatalog, last.ID, last.MaxRating, MaxRating)
	}

	return &TierCatalog{tiers: sorted}, nil
}

// DefaultTierCatalog mirrors the four rule categories.
func DefaultTierCatalog() *TierCatalog {
	c, err := NewTierCatalog([]RatingTier{
		{ID: "beginner", Name: "Beginner", MinRating: 0, MaxRating: 4.5, ProtectionLevel: 2, DisplayOrder: 4},
		{ID: "intermediate", Name: "Intermediate", MinRating: 4.5, MaxRating: 7.2, ProtectionLevel: 1, DisplayOrder: 3},
		{ID: "advanced", Name: "Advanced", MinRating: 7.2, MaxRating: 8.1, ProtectionLevel: 0, DisplayOrder: 2},
		{ID: "elite", Name: "Elite", MinRating: 8.1, MaxRating: MaxRating, ProtectionLevel: 0, DisplayOrder: 1},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Tiers returns a copy of the catalog ordered by rating.
func (c *TierCatalog) Tiers() []RatingTier {
	if c == nil {
		return nil
	}
	out := make([]RatingTier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Lookup returns the tier with the given id.
func (c *TierCatalog) Lookup(id string) (RatingTier, bool) {
	if c == nil {
		return RatingTier{}, false
	}
	for _, t := range c.tiers {
		if t.ID == id {
			return t, true
		}
	}
	return RatingTier{}, false
}

// TierFor returns the tier containing rating. The top tier includes 9.0.
func (c *TierCatalog) TierFor(rating float64) (RatingTier, bool) {
	if c == nil || ValidateRating(rating) != nil {
		return RatingTier{}, false
	}
	for i, t := range c.tiers {
		if rating >= t.MinRating && (rating < t.MaxRating || i == len(c.tiers)-1) {
			return t, true
		}
	}
	return RatingTier{}, false
}

// TierResolution is the outcome of resolving a rating. Tier is zero when
// resolved without a catalog; Fallback is then set and the intermediate
// bundle is used.
type TierResolution struct {
	Category TierCategory
	Rules    TierRuleBundle
	Tier     RatingTier
	Fallback bool
}

// TierResolver resolves ratings against a catalog.
type TierResolver struct {
	catalog *TierCatalog
	strict  bool
}

// NewTierResolver returns a resolver over catalog. A nil catalog resolves
// every rating to the intermediate bundle unless strict is set, in which case
// resolution fails with ErrTierCatalogUnavailable.
func NewTierResolver(catalog *TierCatalog, strict bool) *TierResolver {
	return &TierResolver{catalog: catalog, strict: strict}
}

// Catalog returns the resolver's catalog, possibly nil.
func (r *TierResolver) Catalog() *TierCatalog {
	if r == nil {
		return nil
	}
	return r.catalog
}

// Resolve returns the category, rules and catalog tier for rating.
func (r *TierResolver) Resolve(rating float64) (TierResolution, error) {
	if err := ValidateRating(rating); err != nil {
		return TierResolution{}, err
	}

	if r == nil || r.catalog == nil {
		if r != nil && r.strict {
			return TierResolution{}, ErrTierCatalogUnavailable
		}
		return TierResolution{
			Category: TierIntermediate,
			Rules:    TierIntermediate.Rules(),
			Fallback: true,
		}, nil
	}

	category := CategoryForRating(rating)
	tier, _ := r.catalog.TierFor(rating)
	return TierResolution{
		Category: category,
		Rules:    category.Rules(),
		Tier:     tier,
	}, nil
}
