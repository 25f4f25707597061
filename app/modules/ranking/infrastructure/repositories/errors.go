package rankingdb

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates an insert hit an existing primary key.
	ErrDuplicate = errors.New("duplicate record")
)
