package core

import "testing"

func writeTestSegment(t *testing.T, dir string, seq uint64, items []kv) *segment {
	t.Helper()
	if err := writeSegment(dir, seq, items); err != nil {
		t.Fatalf("writeSegment failed: %v", err)
	}
	seg, err := loadSegment(dir, seq)
	if err != nil {
		t.Fatalf("loadSegment failed: %v", err)
	}
	t.Cleanup(func() { _ = seg.close() })
	return seg
}

func TestSegmentGetEntry(t *testing.T) {
	dir := t.TempDir()
	items := []kv{
		{key: "alpha", entry: Entry{Opstamp: insertionStamp(1), Kind: KindFile, LastModified: 10}},
		{key: "beta", entry: Entry{Opstamp: insertionStamp(2), Kind: KindDirectory, LastModified: 20}},
	}
	seg := writeTestSegment(t, dir, 1, items)

	e, ok := seg.getEntry(0)
	if !ok {
		t.Fatalf("expected entry at offset 0")
	}
	if e.LastModified != 10 || e.Kind != KindFile {
		t.Errorf("unexpected entry at offset 0: %+v", e)
	}

	e, ok = seg.getEntry(EntrySize)
	if !ok {
		t.Fatalf("expected entry at offset %d", EntrySize)
	}
	if e.LastModified != 20 || e.Kind != KindDirectory {
		t.Errorf("unexpected entry at offset %d: %+v", EntrySize, e)
	}
}

func TestSegmentGetEntryOutOfRange(t *testing.T) {
	dir := t.TempDir()
	seg := writeTestSegment(t, dir, 1, []kv{
		{key: "only", entry: Entry{Opstamp: insertionStamp(1)}},
	})

	if _, ok := seg.getEntry(uint64(len(seg.data))); ok {
		t.Errorf("expected out-of-range offset to fail")
	}
}

func TestSegmentSearch(t *testing.T) {
	dir := t.TempDir()
	seg := writeTestSegment(t, dir, 1, []kv{
		{key: "report_final.pdf", entry: Entry{Opstamp: insertionStamp(1)}},
		{key: "notes.txt", entry: Entry{Opstamp: insertionStamp(2)}},
	})

	m := newMatcher("fin")
	it, err := seg.search(m)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if it == nil {
		t.Fatalf("expected a match")
	}

	key, _ := it.Current()
	if string(key) != "report_final.pdf" {
		t.Errorf("expected report_final.pdf, got %q", key)
	}
	if err := it.Next(); err == nil {
		t.Errorf("expected only one match")
	}
}

func TestSegmentSearchNoMatch(t *testing.T) {
	dir := t.TempDir()
	seg := writeTestSegment(t, dir, 1, []kv{
		{key: "notes.txt", entry: Entry{Opstamp: insertionStamp(1)}},
	})

	it, err := seg.search(newMatcher("zzz"))
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if it != nil {
		t.Errorf("expected nil iterator for no match")
	}
}

func TestSegmentIteratorVisitsAllKeys(t *testing.T) {
	dir := t.TempDir()
	seg := writeTestSegment(t, dir, 1, []kv{
		{key: "a", entry: Entry{Opstamp: insertionStamp(1)}},
		{key: "b", entry: Entry{Opstamp: insertionStamp(2)}},
		{key: "c", entry: Entry{Opstamp: insertionStamp(3)}},
	})

	it, err := seg.iterator()
	if err != nil {
		t.Fatalf("iterator failed: %v", err)
	}

	var keys []string
	for it != nil {
		k, _ := it.Current()
		keys = append(keys, string(k))
		if err := it.Next(); err != nil {
			break
		}
	}

	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}
