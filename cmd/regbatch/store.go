package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joshuapare/regbatch/internal/regtext"
	"github.com/joshuapare/regbatch/store"
	"github.com/joshuapare/regbatch/store/regfile"
	"github.com/joshuapare/regbatch/store/winreg"
)

// systemStore selects the live registry.
const systemStore = "system"

var errNoStore = errors.New(`no store given: use --store FILE.reg or --store system`)

// rootedStore is a store that hands out handles on predefined roots.
type rootedStore interface {
	store.Snapshotter
	Root(name string) (store.Key, error)
}

// session is the store a command works on.
type session struct {
	rootedStore
	file *regfile.Store // nil for the live registry
}

// openSession opens the configured store.
func openSession() (*session, error) {
	switch path := settings.Store; {
	case path == "":
		return nil, errNoStore
	case strings.EqualFold(path, systemStore):
		printVerbose("Using live registry\n")
		return &session{rootedStore: winreg.New()}, nil
	default:
		enc, ok := regtext.ParseEncoding(settings.Encoding)
		if !ok {
			return nil, fmt.Errorf("unknown encoding %q", settings.Encoding)
		}
		printVerbose("Opening store: %s\n", path)
		s, err := regfile.Open(path, &regfile.Options{Encoding: enc})
		if err != nil {
			return nil, err
		}
		return &session{rootedStore: s, file: s}, nil
	}
}

// save persists a file store. The live registry needs no saving.
func (s *session) save() error {
	if s.file == nil {
		return nil
	}
	if err := s.file.Save(); err != nil {
		return fmt.Errorf("save %s: %w", s.file.Path(), err)
	}
	printVerbose("Saved store: %s\n", s.file.Path())
	return nil
}

// name describes the store in output.
func (s *session) name() string {
	if s.file == nil {
		return systemStore
	}
	return s.file.Path()
}
