package rankingdomain

import "errors"

var (
	// ErrInvalidGameScore is returned when a game ends level or carries a negative score.
	ErrInvalidGameScore = errors.New("invalid game score")
	// ErrInvalidMatchResult is returned when a match has no decisive winner or a malformed line-up.
	ErrInvalidMatchResult = errors.New("invalid match result")
	// ErrUnknownAgeDivision is returned for divisions outside the fixed set.
	ErrUnknownAgeDivision = errors.New("unknown age division")
	// ErrUnknownMatchType is returned for match types other than casual or tournament.
	ErrUnknownMatchType = errors.New("unknown match type")
	// ErrUnknownPlayFormat is returned for formats other than singles, doubles or mixed.
	ErrUnknownPlayFormat = errors.New("unknown play format")
	// ErrInvalidRating is returned for ratings outside [0, 9].
	ErrInvalidRating = errors.New("rating must be between 0 and 9")
	// ErrInvalidTierCatalog is returned when tiers overlap or leave gaps.
	ErrInvalidTierCatalog = errors.New("invalid tier catalog")
	// ErrTierCatalogUnavailable is returned by a strict resolver without a catalog.
	ErrTierCatalogUnavailable = errors.New("tier catalog unavailable")
)
