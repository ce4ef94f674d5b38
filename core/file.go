package core

import (
	"os"
	"path/filepath"
)

// writeFileAtomic atomically replaces path with the full contents of data.
// It does so by writing to a temp file in the same directory, fsyncing it,
// renaming it over the old path, then fsyncing the directory so the rename
// itself is durable.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	var err error
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	tmpf, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err = tmpf.Write(data); err != nil {
		_ = tmpf.Close()
		return err
	}

	if err = tmpf.Sync(); err != nil {
		_ = tmpf.Close()
		return err
	}

	if err = tmpf.Close(); err != nil {
		return err
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close() // nolint:errcheck

	if err = d.Sync(); err != nil {
		return err
	}

	return nil
}
