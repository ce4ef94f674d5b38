package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/vellum"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gofrs/flock"
)

const lastOpFile = "last_op"
const lockFileName = ".minidex.lock"

// segmentedIndex is a directory-locked collection of immutable segments
// plus a durable "last op" marker. Segments may only be appended; callers
// are expected to hold whatever lock governs concurrent access (the Index
// facade owns that, not segmentedIndex itself — mirroring the teacher's
// split between DB-level locking and a dumber on-disk segment list).
type segmentedIndex struct {
	dir      string
	lockfile *flock.Flock
	segments []*segment
}

// kv is a single overlay record in ascending-key position, the shape the
// FST builder's append-only contract requires.
type kv struct {
	key   string
	entry Entry
}

// openSegmentedIndex creates dir if missing, acquires its exclusive
// lockfile, loads every `<seq>.seg`/`<seq>.dat` pair found in it, and
// reports the last persisted opstamp sequence (ok=false if absent or
// malformed).
func openSegmentedIndex(dir string) (si *segmentedIndex, lastOp uint64, ok bool, rerr error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, 0, false, fmt.Errorf("mkdir %q: %w", dir, err)
	}

	lockfile := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lockfile.TryLock()
	if err != nil {
		return nil, 0, false, fmt.Errorf("acquire lockfile: %w", err)
	}
	if !locked {
		return nil, 0, false, ErrAnotherInstance
	}

	si = &segmentedIndex{dir: dir, lockfile: lockfile}

	defer func() {
		if rerr != nil {
			_ = si.close()
		}
	}()

	lastOp, ok = readLastOp(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, false, fmt.Errorf("read dir %q: %w", dir, err)
	}

	loaded := mapset.NewSet[uint64]()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != "."+segmentExt {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSuffix(name, filepath.Ext(name)), 10, 64)
		if err != nil {
			continue
		}
		if err := si.load(seq); err != nil {
			return nil, 0, false, fmt.Errorf("load segment %d: %w", seq, err)
		}
		loaded.Add(seq)
	}

	si.cleanupOrphans(entries, loaded)

	return si, lastOp, ok, nil
}

func readLastOp(dir string) (uint64, bool) {
	contents, err := os.ReadFile(filepath.Join(dir, lastOpFile))
	if err != nil {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimSpace(string(contents)), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// cleanupOrphans removes every `*.tmp` file, which covers stale compactor
// output (`<seq>.seg.tmp`/`<seq>.dat.tmp`), and logs any `.seg`/`.dat` file that wasn't
// successfully loaded as part of a complete pair, the same diagnostic the
// teacher runs against its manifest on every open.
func (si *segmentedIndex) cleanupOrphans(entries []os.DirEntry, loaded mapset.Set[uint64]) {
	actual := mapset.NewSet[string]()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		switch ext {
		case ".tmp":
			if err := os.Remove(filepath.Join(si.dir, name)); err != nil {
				log.Printf("minidex: remove stale compaction output %q: %v", name, err)
			}
		case "." + segmentExt, "." + dataExt:
			actual.Add(strings.TrimSuffix(name, ext))
		}
	}

	expected := mapset.NewSet[string]()
	for seq := range loaded.Iter() {
		expected.Add(fmt.Sprintf("%d", seq))
	}

	if orphans := actual.Difference(expected); orphans.Cardinality() != 0 {
		log.Printf("minidex: orphaned segment files in %s: %v", si.dir, orphans.ToSlice())
	}
}

// load appends a loaded segment to the in-memory segment list. Callers
// must hold whatever exclusive access the Index facade guards segment
// mutation with.
func (si *segmentedIndex) load(seq uint64) error {
	seg, err := loadSegment(si.dir, seq)
	if err != nil {
		return err
	}
	si.segments = append(si.segments, seg)
	return nil
}

// snapshot returns a cloned list of segment handles safe to use while the
// live list evolves underneath it.
func (si *segmentedIndex) snapshot() []*segment {
	out := make([]*segment, len(si.segments))
	copy(out, si.segments)
	return out
}

// saveLastOp durably overwrites the last_op marker with seq.
func (si *segmentedIndex) saveLastOp(seq uint64) error {
	return writeFileAtomic(filepath.Join(si.dir, lastOpFile), []byte(strconv.FormatUint(seq, 10)))
}

// writeSegment writes items — which must already be in strictly ascending
// key order, the FST builder's contract — as a new `<seq>.seg`/`<seq>.dat`
// pair, fsyncing both before returning. The files use create-new semantics
// so accidental reuse of a sequence number fails loudly.
func writeSegment(dir string, seq uint64, items []kv) (rerr error) {
	segPath, datPath := segmentPaths(dir, seq)

	segFile, err := os.OpenFile(segPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create segment %d map file: %w", seq, err)
	}
	defer func() {
		if rerr != nil {
			_ = segFile.Close()
			_ = os.Remove(segPath)
		}
	}()

	datFile, err := os.OpenFile(datPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create segment %d data file: %w", seq, err)
	}
	defer func() {
		if rerr != nil {
			_ = datFile.Close()
			_ = os.Remove(datPath)
		}
	}()

	builder, err := vellum.New(segFile, nil)
	if err != nil {
		return fmt.Errorf("new FST builder for segment %d: %w", seq, err)
	}

	var offset uint64
	for _, item := range items {
		b := item.entry.toBytes()
		if _, err := datFile.Write(b[:]); err != nil {
			return fmt.Errorf("write entry for %q: %w", item.key, err)
		}
		if err := builder.Insert([]byte(item.key), offset); err != nil {
			return fmt.Errorf("insert %q into FST: %w", item.key, err)
		}
		offset += EntrySize
	}

	if err := datFile.Sync(); err != nil {
		return fmt.Errorf("sync segment %d data file: %w", seq, err)
	}
	if err := datFile.Close(); err != nil {
		return fmt.Errorf("close segment %d data file: %w", seq, err)
	}

	if err := builder.Close(); err != nil {
		return fmt.Errorf("finish FST for segment %d: %w", seq, err)
	}
	if err := segFile.Sync(); err != nil {
		return fmt.Errorf("sync segment %d map file: %w", seq, err)
	}
	if err := segFile.Close(); err != nil {
		return fmt.Errorf("close segment %d map file: %w", seq, err)
	}

	return nil
}

func (si *segmentedIndex) close() error {
	var err error
	for _, s := range si.segments {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if uerr := si.lockfile.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
