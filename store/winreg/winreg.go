// Package winreg exposes the live Windows registry through the store
// contract. On other platforms every call fails with types.ErrUnsupported.
package winreg

import (
	"github.com/joshuapare/regbatch/store"
)

// Store is the local machine's registry.
type Store struct{}

var _ store.Snapshotter = (*Store)(nil)

// New returns the system registry store.
func New() *Store { return &Store{} }
