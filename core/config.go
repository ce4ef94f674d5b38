package core

// CompactorConfig holds the compactor's tunables. Only MinMergeCount is
// currently enforced by Index's compaction trigger; the rest are accepted
// so callers don't hit a compile error wiring up values the underlying
// source exposes, but no trigger logic reads them yet (spec Open Question,
// see DESIGN.md).
type CompactorConfig struct {
	MinMergeCount     int
	MaxSizeRatio      float32
	MemoryThreshold   int
	DeletionThreshold int
}

// DefaultCompactorConfig mirrors the values the original implementation
// ships with.
func DefaultCompactorConfig() CompactorConfig {
	return CompactorConfig{
		MinMergeCount:     4,
		MaxSizeRatio:      1.5,
		MemoryThreshold:   100 * 1024 * 1024,
		DeletionThreshold: 1000,
	}
}

// Option configures an Index at Open time.
type Option func(*Index)

// WithMinMergeCount overrides the segment-count threshold that triggers a
// background compaction: one starts once more than n segments are loaded.
func WithMinMergeCount(n int) Option {
	return func(idx *Index) { idx.cfg.MinMergeCount = n }
}

// WithMaxSizeRatio sets the (currently unenforced) max-size-ratio knob.
func WithMaxSizeRatio(r float32) Option {
	return func(idx *Index) { idx.cfg.MaxSizeRatio = r }
}

// WithMemoryThreshold sets the (currently unenforced) memory-threshold knob.
func WithMemoryThreshold(n int) Option {
	return func(idx *Index) { idx.cfg.MemoryThreshold = n }
}

// WithDeletionThreshold sets the (currently unenforced) deletion-threshold
// knob.
func WithDeletionThreshold(n int) Option {
	return func(idx *Index) { idx.cfg.DeletionThreshold = n }
}

// withOnCompactStart is a test hook fired right before a compaction snapshot
// is handed to the background goroutine, mirroring the teacher's
// onMergeStart test hook.
func withOnCompactStart(f func()) Option {
	return func(idx *Index) { idx.onCompactStart = f }
}
