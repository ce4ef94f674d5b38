package core

import (
	"os"
	"testing"
)

// SetupTempIndex opens an Index rooted at a fresh temp directory, registers
// cleanup to close it and remove the directory, and returns both the index
// and its path for reopen-style tests.
func SetupTempIndex(tb testing.TB, opts ...Option) (idx *Index, path string, cleanup func()) {
	path, err := os.MkdirTemp("", "minidex_test_*")
	if err != nil {
		tb.Fatalf("MkdirTemp failed: %v", err)
	}

	idx, err = Open(path, opts...)
	if err != nil {
		_ = os.RemoveAll(path)
		tb.Fatalf("Open(%q) failed: %v", path, err)
	}

	cleanup = func() {
		_ = idx.Close()
		_ = os.RemoveAll(path)
	}

	tb.Cleanup(cleanup)

	return idx, path, cleanup
}
