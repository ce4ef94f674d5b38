package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/vellum"
	mmap "github.com/edsrzf/mmap-go"
)

const segmentExt = "seg"
const dataExt = "dat"

func segmentBasePath(dir string, seq uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d", seq))
}

func segmentPaths(dir string, seq uint64) (segPath, datPath string) {
	base := segmentBasePath(dir, seq)
	return base + "." + segmentExt, base + "." + dataExt
}

// segment is an immutable pair of memory-mapped files: an FST map from key
// bytes to a byte offset, and a data blob of fixed-size entry records that
// the offset indexes into. Segments are shared across the live index and
// any in-flight compactor snapshot; Go's GC plays the role the Rust source
// gives to Arc, so there is no explicit refcount — a segment and its mmaps
// simply live as long as something still holds the pointer.
type segment struct {
	seq     uint64
	fst     *vellum.FST
	fstMmap mmap.MMap
	data    mmap.MMap
	dataF   *os.File
	fstF    *os.File
}

// loadSegment memory-maps the `<seq>.seg` FST and `<seq>.dat` data blob for
// an already-committed segment.
func loadSegment(dir string, seq uint64) (*segment, error) {
	segPath, datPath := segmentPaths(dir, seq)
	seg, err := loadSegmentAtPaths(segPath, datPath)
	if err != nil {
		return nil, err
	}
	seg.seq = seq
	return seg, nil
}

// loadSegmentAtPaths memory-maps an FST map file and data blob at explicit
// paths, regardless of the `<seq>.seg`/`<seq>.dat` naming convention. The
// compactor tests use this to load the compactor's `<seq>.seg.tmp`/
// `<seq>.dat.tmp` output back for verification without registering it as a
// live segment.
func loadSegmentAtPaths(segPath, datPath string) (*segment, error) {
	fstF, err := os.Open(segPath)
	if err != nil {
		return nil, fmt.Errorf("open segment map file %q: %w", segPath, err)
	}

	fstMmap, err := mmap.Map(fstF, mmap.RDONLY, 0)
	if err != nil {
		_ = fstF.Close()
		return nil, fmt.Errorf("mmap segment map file %q: %w", segPath, err)
	}

	fst, err := vellum.Load(fstMmap)
	if err != nil {
		_ = fstMmap.Unmap()
		_ = fstF.Close()
		return nil, fmt.Errorf("%w: load FST %q: %v", ErrCorrupt, segPath, err)
	}

	dataF, err := os.Open(datPath)
	if err != nil {
		_ = fstMmap.Unmap()
		_ = fstF.Close()
		return nil, fmt.Errorf("open segment data file %q: %w", datPath, err)
	}

	var data mmap.MMap
	if fi, statErr := dataF.Stat(); statErr == nil && fi.Size() > 0 {
		data, err = mmap.Map(dataF, mmap.RDONLY, 0)
		if err != nil {
			_ = dataF.Close()
			_ = fstMmap.Unmap()
			_ = fstF.Close()
			return nil, fmt.Errorf("mmap segment data file %q: %w", datPath, err)
		}
	}

	return &segment{
		fst:     fst,
		fstMmap: fstMmap,
		data:    data,
		dataF:   dataF,
		fstF:    fstF,
	}, nil
}

// getEntry fetches the entry record at offset. A miss (offset out of
// range, or a malformed record) is reported as ok=false, not as an error;
// search and the compactor skip such a result rather than crashing.
func (s *segment) getEntry(offset uint64) (Entry, bool) {
	start := int(offset)
	end := start + EntrySize
	if start < 0 || end > len(s.data) {
		return Entry{}, false
	}

	e, err := entryFromBytes(s.data[start:end])
	if err != nil {
		return Entry{}, false
	}
	return e, true
}

// search streams (key, offset) pairs matching the automaton in FST order,
// pruning trie branches that can't lead to a match. A nil iterator means
// no key in this segment matches.
func (s *segment) search(m *Matcher) (*vellum.FSTIterator, error) {
	it, err := s.fst.Search(m, nil, nil)
	if err == vellum.ErrIteratorDone {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// iterator streams every (key, offset) pair in the segment, in FST order,
// for the compactor's n-way merge. A nil iterator means the segment is
// empty.
func (s *segment) iterator() (*vellum.FSTIterator, error) {
	it, err := s.fst.Iterator(nil, nil)
	if err == vellum.ErrIteratorDone {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (s *segment) close() error {
	var err error
	if cerr := s.fst.Close(); cerr != nil {
		err = cerr
	}
	if s.fstMmap != nil {
		if uerr := s.fstMmap.Unmap(); uerr != nil && err == nil {
			err = uerr
		}
	}
	if s.fstF != nil {
		if cerr := s.fstF.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s.data != nil {
		if uerr := s.data.Unmap(); uerr != nil && err == nil {
			err = uerr
		}
	}
	if s.dataF != nil {
		if cerr := s.dataF.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
