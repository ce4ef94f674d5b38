package core

import "errors"

var (
	// ErrAnotherInstance is returned by Open when the directory's lockfile
	// is already held by another process.
	ErrAnotherInstance = errors.New("another instance is running against this index directory")

	// ErrReadLock / ErrWriteLock signal a poisoned lock (a holder
	// panicked while holding it). Part of the documented error contract
	// (spec.md §7, mirroring the Rust source's RwLock poisoning); Go's
	// sync.RWMutex has no poisoning concept, so these are defined for
	// API-shape parity but never returned by this implementation.
	ErrReadLock  = errors.New("failed to read-lock index state")
	ErrWriteLock = errors.New("failed to write-lock index state")

	// ErrCorrupt signals malformed on-disk state: an entry record of the
	// wrong length, or a malformed FST. An out-of-range offset is not
	// reported with it (segment.getEntry returns ok=false instead).
	ErrCorrupt = errors.New("corrupt index state")

	// ErrRegex signals that a search query compiled to an invalid matcher.
	// Part of the documented error contract (spec.md §7); unreachable in
	// this implementation because the matcher never compiles a real regex
	// (see core/matcher.go's doc comment) — every query is a valid pattern.
	ErrRegex = errors.New("invalid search query")
)
