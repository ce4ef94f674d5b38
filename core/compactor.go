package core

import (
	"bytes"
	"container/heap"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/vellum"
)

// tmpSegmentPaths names a compactor output pair so segmentedIndex's open
// never mistakes it for a live segment: both files end in ".tmp", which is
// the extension cleanupOrphans sweeps on the next Open. The spec leaves the
// compactor's exact output naming an open question (see DESIGN.md); this is
// the resolution chosen here.
func tmpSegmentPaths(dir string, seq uint64) (segPath, datPath string) {
	base := filepath.Join(dir, fmt.Sprintf("%d", seq))
	return base + "." + segmentExt + ".tmp", base + "." + dataExt + ".tmp"
}

// mergeCursor tracks one segment's current position during the n-way
// merge: the key it's positioned at and the offset of its entry record.
type mergeCursor struct {
	segIdx int
	key    []byte
	offset uint64
}

type cursorHeap []*mergeCursor

func (h cursorHeap) Len() int            { return len(h) }
func (h cursorHeap) Less(i, j int) bool  { return bytes.Compare(h[i].key, h[j].key) < 0 }
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)         { *h = append(*h, x.(*mergeCursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func cursorAt(segIdx int, it *vellum.FSTIterator) *mergeCursor {
	if it == nil {
		return nil
	}
	key, offset := it.Current()
	if key == nil {
		return nil
	}
	return &mergeCursor{segIdx: segIdx, key: append([]byte(nil), key...), offset: offset}
}

// mergeSegments builds an n-way union stream over segments' FSTs in
// byte-lex key order (the union stream groups every contributor for a key
// into a single yield, so ties across segments never produce duplicate
// emissions), keeps the highest-opstamp entry per key, drops tombstoned
// keys, and writes the survivors to a `<seq>.seg.tmp`/`<seq>.dat.tmp` pair.
// It returns the count of keys written.
//
// This never renames the output into place, registers it with the live
// segment list, or deletes its inputs — the atomic-swap policy the spec
// leaves as a follow-up (DESIGN.md open question #1). A stale output pair
// left by an interrupted compaction is swept on the next Open.
func mergeSegments(dir string, seq uint64, segments []*segment) (written uint64, rerr error) {
	if len(segments) == 0 {
		return 0, nil
	}

	segPath, datPath := tmpSegmentPaths(dir, seq)

	segFile, err := os.OpenFile(segPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create compaction map file: %w", err)
	}
	defer func() {
		if rerr != nil {
			_ = segFile.Close()
			_ = os.Remove(segPath)
		}
	}()

	datFile, err := os.OpenFile(datPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create compaction data file: %w", err)
	}
	defer func() {
		if rerr != nil {
			_ = datFile.Close()
			_ = os.Remove(datPath)
		}
	}()

	builder, err := vellum.New(segFile, nil)
	if err != nil {
		return 0, fmt.Errorf("new FST builder for compaction: %w", err)
	}

	iters := make([]*vellum.FSTIterator, len(segments))
	h := &cursorHeap{}
	heap.Init(h)
	for i, s := range segments {
		it, err := s.iterator()
		if err != nil {
			return 0, fmt.Errorf("iterate segment %d: %w", s.seq, err)
		}
		iters[i] = it
		if cur := cursorAt(i, it); cur != nil {
			heap.Push(h, cur)
		}
	}

	var offset uint64
	for h.Len() > 0 {
		key := append([]byte(nil), (*h)[0].key...)

		var best *Entry
		for h.Len() > 0 && bytes.Equal((*h)[0].key, key) {
			cur := heap.Pop(h).(*mergeCursor)

			if e, ok := segments[cur.segIdx].getEntry(cur.offset); ok {
				if best == nil || e.Opstamp.sequence() > best.Opstamp.sequence() {
					entryCopy := e
					best = &entryCopy
				}
			}

			if err := iters[cur.segIdx].Next(); err == nil {
				if next := cursorAt(cur.segIdx, iters[cur.segIdx]); next != nil {
					heap.Push(h, next)
				}
			}
		}

		if best == nil || best.Opstamp.isDeletion() {
			continue
		}

		b := best.toBytes()
		if _, err := datFile.Write(b[:]); err != nil {
			return 0, fmt.Errorf("write merged entry for %q: %w", key, err)
		}
		if err := builder.Insert(key, offset); err != nil {
			return 0, fmt.Errorf("insert merged key %q into FST: %w", key, err)
		}
		offset += EntrySize
		written++
	}

	if err := datFile.Sync(); err != nil {
		return 0, fmt.Errorf("sync compaction data file: %w", err)
	}
	if err := datFile.Close(); err != nil {
		return 0, fmt.Errorf("close compaction data file: %w", err)
	}

	if err := builder.Close(); err != nil {
		return 0, fmt.Errorf("finish compaction FST: %w", err)
	}
	if err := segFile.Sync(); err != nil {
		return 0, fmt.Errorf("sync compaction map file: %w", err)
	}
	if err := segFile.Close(); err != nil {
		return 0, fmt.Errorf("close compaction map file: %w", err)
	}

	return written, nil
}
