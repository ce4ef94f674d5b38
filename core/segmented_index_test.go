package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenSegmentedIndexCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "index")

	si, lastOp, ok, err := openSegmentedIndex(dir)
	if err != nil {
		t.Fatalf("openSegmentedIndex failed: %v", err)
	}
	defer si.close() // nolint:errcheck

	if ok {
		t.Errorf("expected no last_op on a fresh directory")
	}
	if lastOp != 0 {
		t.Errorf("expected lastOp 0, got %d", lastOp)
	}
	if len(si.segments) != 0 {
		t.Errorf("expected no segments on a fresh directory")
	}
}

func TestOpenSegmentedIndexRefusesSecondInstance(t *testing.T) {
	dir := t.TempDir()

	si, _, _, err := openSegmentedIndex(dir)
	if err != nil {
		t.Fatalf("first openSegmentedIndex failed: %v", err)
	}
	defer si.close() // nolint:errcheck

	if _, _, _, err := openSegmentedIndex(dir); err != ErrAnotherInstance {
		t.Errorf("expected ErrAnotherInstance, got %v", err)
	}
}

func TestOpenSegmentedIndexLoadsExistingSegments(t *testing.T) {
	dir := t.TempDir()

	items := []kv{
		{key: "a", entry: Entry{Opstamp: insertionStamp(1), Kind: KindFile}},
		{key: "b", entry: Entry{Opstamp: insertionStamp(2), Kind: KindFile}},
	}
	if err := writeSegment(dir, 1, items); err != nil {
		t.Fatalf("writeSegment failed: %v", err)
	}

	si, lastOp, ok, err := openSegmentedIndex(dir)
	if err != nil {
		t.Fatalf("openSegmentedIndex failed: %v", err)
	}
	defer si.close() // nolint:errcheck

	if ok {
		t.Errorf("writeSegment does not write last_op; expected ok=false")
	}
	_ = lastOp

	if len(si.segments) != 1 {
		t.Fatalf("expected 1 loaded segment, got %d", len(si.segments))
	}
	if si.segments[0].seq != 1 {
		t.Errorf("expected segment seq 1, got %d", si.segments[0].seq)
	}
}

func TestOpenSegmentedIndexReadsLastOp(t *testing.T) {
	dir := t.TempDir()

	si, _, _, err := openSegmentedIndex(dir)
	if err != nil {
		t.Fatalf("openSegmentedIndex failed: %v", err)
	}
	if err := si.saveLastOp(77); err != nil {
		t.Fatalf("saveLastOp failed: %v", err)
	}
	if err := si.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	si2, lastOp, ok, err := openSegmentedIndex(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer si2.close() // nolint:errcheck

	if !ok {
		t.Fatalf("expected last_op to be present")
	}
	if lastOp != 77 {
		t.Errorf("expected lastOp 77, got %d", lastOp)
	}
}

func TestOpenSegmentedIndexSweepsStaleTmpFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "5.seg.tmp")
	if err := os.WriteFile(stale, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write stale file failed: %v", err)
	}

	si, _, _, err := openSegmentedIndex(dir)
	if err != nil {
		t.Fatalf("openSegmentedIndex failed: %v", err)
	}
	defer si.close() // nolint:errcheck

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected stale .tmp file to be removed, stat err = %v", err)
	}
}
