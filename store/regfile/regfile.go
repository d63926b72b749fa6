// Package regfile is a persistent store backed by a .reg file.
//
// The file is parsed into a memstore on Open and written back in full by
// Save, so every mutation made through the store's handles is persisted only
// when Save is called.
package regfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joshuapare/regbatch/internal/regtext"
	"github.com/joshuapare/regbatch/internal/writer"
	"github.com/joshuapare/regbatch/store/memstore"
)

// Options configures how the file is written.
type Options struct {
	// Encoding of the saved file. Default: UTF-16LE with BOM, like regedit.
	Encoding regtext.Encoding
	// Sink receives the saved document. Default: an atomic FileWriter on the
	// store's path.
	Sink writer.Sink
}

// DefaultOptions returns the options used when nil is passed to Open.
func DefaultOptions() *Options {
	return &Options{Encoding: regtext.UTF16LE}
}

// Store is a memstore loaded from, and saved to, a .reg file.
type Store struct {
	*memstore.Store
	path string
	opts Options
}

// Open loads path into a new store. A missing file yields an empty store that
// Save will create.
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	s := &Store{Store: memstore.New(), path: path, opts: *opts}
	if s.opts.Sink == nil {
		s.opts.Sink = &writer.FileWriter{Path: path}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("regfile: %w", err)
	}

	top, err := regtext.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("regfile: %s: %w", path, err)
	}
	if err := s.Load(top); err != nil {
		return nil, fmt.Errorf("regfile: %s: %w", path, err)
	}
	return s, nil
}

// Path returns the file the store was opened from.
func (s *Store) Path() string { return s.path }

// Save writes every root key to the sink as .reg text.
func (s *Store) Save() error {
	top, err := s.Snapshot("")
	if err != nil {
		return fmt.Errorf("regfile: save: %w", err)
	}
	data, err := regtext.Marshal(top, "", s.opts.Encoding)
	if err != nil {
		return fmt.Errorf("regfile: save: %w", err)
	}
	if err := s.opts.Sink.WriteAll(data); err != nil {
		return fmt.Errorf("regfile: save %s: %w", s.path, err)
	}
	return nil
}
