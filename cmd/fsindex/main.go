// Command fsindex is an illustrative caller of the minidex core: it walks a
// directory tree, inserts every entry it finds, commits, and, when -query
// is given, runs one search. It is the "directory-walking example that feeds entries"
// the core treats as an external collaborator, not part of the core itself.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/minidex/minidex/core"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  fsindex -index <index-dir> -root <dir-to-scan> [-query <search query>]\n")
	os.Exit(1)
}

func main() {
	var (
		indexDir = flag.String("index", "", "path to the minidex index directory")
		root     = flag.String("root", "", "directory to walk and index")
		query    = flag.String("query", "", "fuzzy query to run once indexing completes")
	)
	flag.Parse()

	if *indexDir == "" || *root == "" {
		usage()
	}

	idx, err := core.Open(*indexDir)
	if err != nil {
		log.Fatalf("could not open index: %v", err)
	}
	defer idx.Close()

	count, err := scan(idx, *root)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}
	log.Printf("indexed %d entries from %s", count, *root)

	if err := idx.Commit(); err != nil {
		log.Fatalf("commit failed: %v", err)
	}

	if *query == "" {
		return
	}

	results, err := idx.Search(*query)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}
	for _, r := range results {
		fmt.Printf("%s\t%s\t%s\n", r.Path, r.Kind, time.UnixMicro(int64(r.LastModified)).Format(time.RFC3339))
	}
}

// scan walks root and inserts every file, directory, and symlink it finds.
// A single walker error is logged and skipped rather than aborting the
// whole scan — consistent with the core's "never blocks, never crashes the
// caller over one bad input" posture, but this policy lives entirely
// outside the core.
func scan(idx *core.Index, root string) (int, error) {
	var count int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("fsindex: skipping %s: %v", path, err)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			log.Printf("fsindex: skipping %s: %v", path, err)
			return nil
		}

		kind := core.KindFile
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			kind = core.KindSymlink
		case d.IsDir():
			kind = core.KindDirectory
		}

		modUs := uint64(info.ModTime().UnixMicro())

		if err := idx.Insert(core.FilesystemEntry{
			Path:         path,
			Kind:         kind,
			LastModified: modUs,
			LastAccessed: modUs,
		}); err != nil {
			log.Printf("fsindex: insert %s: %v", path, err)
			return nil
		}

		count++
		return nil
	})
	return count, err
}
