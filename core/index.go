// Package core is minidex's storage and query engine: the segmented index
// on durable storage, the opstamp-based versioning scheme, the automaton
// used to scan on-disk FST maps, the search-time merge of memory and
// segment state, and the background compactor.
package core

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Index is the public facade: insert/delete/commit/rollback/search, plus
// opstamp allocation and compactor triggering.
type Index struct {
	dir string

	segMu sync.RWMutex
	base  *segmentedIndex

	overlayMu sync.RWMutex
	overlay   map[string]Entry

	seqCounter atomic.Uint64

	cfg            CompactorConfig
	compactSem     chan struct{}
	onCompactStart func()
}

// Open opens (or creates) an index directory with the default compactor
// configuration.
func Open(dir string, opts ...Option) (*Index, error) {
	return OpenWithConfig(dir, DefaultCompactorConfig(), opts...)
}

// OpenWithConfig opens (or creates) an index directory with an explicit
// CompactorConfig, then applies opts on top of it.
func OpenWithConfig(dir string, cfg CompactorConfig, opts ...Option) (*Index, error) {
	base, lastOp, ok, err := openSegmentedIndex(dir)
	if err != nil {
		if err == ErrAnotherInstance {
			return nil, err
		}
		return nil, fmt.Errorf("open segmented index: %w", err)
	}

	idx := &Index{
		dir:            dir,
		base:           base,
		overlay:        make(map[string]Entry),
		cfg:            cfg,
		compactSem:     make(chan struct{}, 1),
		onCompactStart: func() {},
	}

	// Seed the opstamp counter from the higher of the durable watermark
	// and the wall clock, so sequence numbers sort roughly by real time
	// even across a crash that left no last_op behind. The atomic counter
	// — not the clock — is what actually guarantees monotonicity within
	// this process lifetime.
	seed := uint64(time.Now().UnixMicro())
	if ok && lastOp > seed {
		seed = lastOp
	}
	idx.seqCounter.Store(seed)

	for _, opt := range opts {
		opt(idx)
	}

	return idx, nil
}

// Close releases the directory lockfile and unmaps every loaded segment.
func (idx *Index) Close() error {
	idx.segMu.Lock()
	defer idx.segMu.Unlock()
	return idx.base.close()
}

func (idx *Index) nextOpSeq() uint64 {
	return idx.seqCounter.Add(1) - 1
}

func (idx *Index) currentOpSeq() uint64 {
	return idx.seqCounter.Load()
}

// Insert allocates a new opstamp and overwrites the overlay entry for
// item.Path. It never blocks on disk; it may trigger the background
// compactor.
func (idx *Index) Insert(item FilesystemEntry) error {
	seq := idx.nextOpSeq()

	e := Entry{
		Opstamp:      insertionStamp(seq),
		Kind:         item.Kind,
		ContentType:  0,
		LastModified: item.LastModified,
		LastAccessed: item.LastAccessed,
	}

	idx.overlayMu.Lock()
	idx.overlay[item.Path] = e
	idx.overlayMu.Unlock()

	idx.maybeCompact()

	return nil
}

// Delete allocates a new opstamp and overwrites the overlay with a
// tombstone record for key.
func (idx *Index) Delete(key string) error {
	seq := idx.nextOpSeq()

	idx.overlayMu.Lock()
	idx.overlay[key] = Entry{Opstamp: deletionStamp(seq)}
	idx.overlayMu.Unlock()

	return nil
}

// Commit drains the overlay into a new on-disk segment and registers it.
// A commit on an empty overlay is a no-op — no segment file is produced.
//
// If any step after draining the overlay fails, the overlay is already
// empty and any partial segment file is best-effort removed; this is the
// single-writer, best-effort durability contract the spec describes, not a
// transactional one.
func (idx *Index) Commit() error {
	idx.overlayMu.Lock()
	if len(idx.overlay) == 0 {
		idx.overlayMu.Unlock()
		return nil
	}

	items := make([]kv, 0, len(idx.overlay))
	for k, e := range idx.overlay {
		items = append(items, kv{key: k, entry: e})
	}
	idx.overlay = make(map[string]Entry)
	idx.overlayMu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	seq := idx.nextOpSeq()

	if err := writeSegment(idx.dir, seq, items); err != nil {
		return fmt.Errorf("write segment %d: %w", seq, err)
	}

	idx.segMu.Lock()
	err := idx.base.load(seq)
	idx.segMu.Unlock()
	if err != nil {
		return fmt.Errorf("register segment %d: %w", seq, err)
	}

	if err := idx.base.saveLastOp(idx.currentOpSeq()); err != nil {
		return fmt.Errorf("save last op: %w", err)
	}

	return nil
}

// Rollback discards the overlay.
func (idx *Index) Rollback() error {
	idx.overlayMu.Lock()
	idx.overlay = make(map[string]Entry)
	idx.overlayMu.Unlock()
	return nil
}

// SearchResult is a single hit returned by Search.
type SearchResult struct {
	Path         string
	Kind         Kind
	LastModified uint64
	LastAccessed uint64
}

// searchResultLess orders results by last_modified descending, kind
// ascending, path ascending.
func searchResultLess(a, b SearchResult) bool {
	if a.LastModified != b.LastModified {
		return a.LastModified > b.LastModified
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Path < b.Path
}

type candidateEntry struct {
	path  string
	entry Entry
}

// Search compiles query into a Matcher, unions the overlay and every
// segment through it, resolves duplicate (case-folded) keys by keeping the
// entry with the higher opstamp sequence, drops tombstones, and returns
// the survivors sorted per searchResultLess.
func (idx *Index) Search(query string) ([]SearchResult, error) {
	m := newMatcher(query)

	idx.segMu.RLock()
	segments := idx.base.snapshot()
	idx.segMu.RUnlock()

	idx.overlayMu.RLock()
	overlay := make(map[string]Entry, len(idx.overlay))
	for k, v := range idx.overlay {
		overlay[k] = v
	}
	idx.overlayMu.RUnlock()

	candidates := make(map[string]candidateEntry)

	consider := func(path string, e Entry) {
		key := foldKey(path)
		if cur, ok := candidates[key]; !ok || e.Opstamp.sequence() > cur.entry.Opstamp.sequence() {
			candidates[key] = candidateEntry{path: path, entry: e}
		}
	}

	for path, e := range overlay {
		if m.isMatchString(path) {
			consider(path, e)
		}
	}

	for _, seg := range segments {
		it, err := seg.search(m)
		if err != nil {
			return nil, fmt.Errorf("search segment %d: %w", seg.seq, err)
		}
		for it != nil {
			keyBytes, offset := it.Current()
			if entry, ok := seg.getEntry(offset); ok {
				consider(string(keyBytes), entry)
			}
			if err := it.Next(); err != nil {
				break
			}
		}
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.entry.Opstamp.isDeletion() {
			continue
		}
		results = append(results, SearchResult{
			Path:         c.path,
			Kind:         c.entry.Kind,
			LastModified: c.entry.LastModified,
			LastAccessed: c.entry.LastAccessed,
		})
	}

	sort.Slice(results, func(i, j int) bool { return searchResultLess(results[i], results[j]) })

	return results, nil
}

func foldKey(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b[i] = foldByte(s[i])
	}
	return string(b)
}

// maybeCompact checks the loaded-segment-count threshold and, if no
// compactor is currently running, starts one. The non-blocking channel
// send below is what makes "is one running?" and "start one" a single
// atomic step: only one goroutine can ever win the send.
func (idx *Index) maybeCompact() {
	idx.segMu.RLock()
	segCount := len(idx.base.segments)
	idx.segMu.RUnlock()

	if segCount <= idx.cfg.MinMergeCount {
		return
	}

	select {
	case idx.compactSem <- struct{}{}:
	default:
		return
	}

	idx.segMu.RLock()
	snapshot := idx.base.snapshot()
	idx.segMu.RUnlock()

	if len(snapshot) == 0 {
		<-idx.compactSem
		return
	}

	idx.onCompactStart()

	seq := idx.nextOpSeq()
	dir := idx.dir

	go func() {
		defer func() { <-idx.compactSem }()
		if _, err := mergeSegments(dir, seq, snapshot); err != nil {
			log.Printf("minidex: compaction failed: %v", err)
		}
	}()
}
