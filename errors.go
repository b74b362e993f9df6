package helix

import "errors"

var (
	// ErrMissingDirectory is returned when the configured decisions
	// directory does not exist or cannot be read.
	ErrMissingDirectory = errors.New("helix: decisions directory not found")

	// ErrMalformedDecision names the condition of a decision file that is
	// missing required frontmatter or fails validation. Sync does not
	// return it: it reports such files as warnings (file name and reason
	// text, with no error value attached) and keeps going.
	ErrMalformedDecision = errors.New("helix: malformed decision record")

	// ErrEmbeddingFailure is returned when the embedder cannot produce a
	// vector for a decision body.
	ErrEmbeddingFailure = errors.New("helix: embedding failed")

	// ErrStoreFailure wraps unexpected errors from the underlying index
	// store (SQLite, sqlite-vec).
	ErrStoreFailure = errors.New("helix: store operation failed")

	// ErrLockHeld is returned when the index lock cannot be acquired
	// within the configured timeout because another process holds it.
	ErrLockHeld = errors.New("helix: index is locked by another process")

	// ErrNotFound is returned when a referenced decision id does not
	// exist in the index.
	ErrNotFound = errors.New("helix: decision not found")

	// ErrEmptyResult is returned when a query executes successfully but
	// matches nothing.
	ErrEmptyResult = errors.New("helix: no matching decisions")

	// ErrModelMismatch is returned when the index was built with a
	// different embedder than the one configured for the current run.
	ErrModelMismatch = errors.New("helix: index was built with a different embedding model")

	// ErrClosed names the closed-engine condition. Engine methods do not
	// return it: a call made after Close fails with the error of the
	// closed database handle, wrapped in that method's usual sentinel.
	ErrClosed = errors.New("helix: engine is closed")

	// ErrInvalidConfigValue is returned when a required Config field is
	// missing or out of range.
	ErrInvalidConfigValue = errors.New("helix: invalid configuration value")
)
