// Package writer provides sinks for serialized store contents.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink receives a complete serialized document.
type Sink interface {
	WriteAll(buf []byte) error
}

// FileWriter replaces a file atomically: data goes to a temp file in the
// same directory, which is synced and then renamed over Path.
type FileWriter struct {
	Path string
	Perm os.FileMode // zero means 0o644
}

var _ Sink = (*FileWriter)(nil)

// WriteAll writes buf to the configured path via temp file + rename.
func (w *FileWriter) WriteAll(buf []byte) error {
	dir := filepath.Dir(w.Path)
	tmpFile, err := os.CreateTemp(dir, ".regbatch-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(buf); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, w.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
