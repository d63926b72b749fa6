//go:build !windows

package winreg

import (
	"fmt"

	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

// Root is unavailable off Windows.
func (s *Store) Root(name string) (store.Key, error) {
	return nil, fmt.Errorf("winreg: root %q: %w", name, types.ErrUnsupported)
}

// Snapshot is unavailable off Windows.
func (s *Store) Snapshot(path string) (*store.Tree, error) {
	return nil, fmt.Errorf("winreg: snapshot %q: %w", path, types.ErrUnsupported)
}
