package rankingservice

import "errors"

// Domain errors for the ranking service. Handlers turn them into rejection
// events rather than retrying.
var (
	// ErrMatchAlreadyRecorded indicates the match id was applied earlier with
	// different content. Corrections are submitted as new matches.
	ErrMatchAlreadyRecorded = errors.New("match already recorded with different content")

	// ErrUnknownPlayer indicates a participant has no profile.
	ErrUnknownPlayer = errors.New("unknown player")

	// ErrUnreadableSheet indicates an import file could not be parsed at all.
	ErrUnreadableSheet = errors.New("unreadable match sheet")
)

// errRollback aborts a transaction whose operation produced a failure result.
var errRollback = errors.New("rollback on failure result")
