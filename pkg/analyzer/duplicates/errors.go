package duplicates

import "errors"

var (
	// ErrNoFolders is returned when a run is started without any root.
	ErrNoFolders = errors.New("no folders configured")

	// ErrInvalidConfig wraps every configuration problem found before a run.
	ErrInvalidConfig = errors.New("invalid duplicate scan configuration")

	// ErrIndexFrozen is returned when inserting into a frozen index.
	ErrIndexFrozen = errors.New("unique-line index is frozen")

	// ErrIndexNotFrozen is returned when merging before indexing finished.
	ErrIndexNotFrozen = errors.New("merge requires a completed index pass")
)
