package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist. Caches reuse it
	// to signal a miss.
	ErrNotFound = errors.New("repository: not found")
	// ErrHierarchyCycle indicates the organization tree contains a cycle, which
	// is a data-integrity violation.
	ErrHierarchyCycle = errors.New("repository: organization hierarchy cycle")
)
