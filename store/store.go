package store

import (
	"github.com/joshuapare/regbatch/pkg/types"
)

// Mode selects how OpenKey obtains a handle.
type Mode uint8

const (
	// Create opens the key, creating it (and any missing intermediate keys)
	// if it does not exist. It succeeds whether or not the key pre-exists.
	Create Mode = iota
	// OpenExisting opens the key and fails with types.ErrNotFound if it is
	// absent.
	OpenExisting
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Create:
		return "create"
	case OpenExisting:
		return "open"
	default:
		return "unknown"
	}
}

// Key is an open handle on a key. Handles must be closed on every path.
//
// Names passed to OpenKey and DeleteKey are relative paths using `\` as the
// separator. Value names are single names; "" addresses the default value.
type Key interface {
	// OpenKey opens a subkey of this key using the requested mode.
	OpenKey(name string, mode Mode) (Key, error)

	// SetValue creates or replaces a value.
	SetValue(name string, t types.RegType, data []byte) error

	// DeleteValue removes a value. Missing values fail with types.ErrNotFound.
	DeleteValue(name string) error

	// DeleteKey removes the last segment of the relative path name. It fails
	// with types.ErrNotFound if absent; stores refuse to delete keys that
	// still hold content.
	DeleteKey(name string) error

	// Close releases the handle.
	Close() error
}

// Snapshotter is implemented by stores that can export a subtree.
type Snapshotter interface {
	// Snapshot returns a detached copy of the key at path, relative to the
	// store's top level (e.g. `HKEY_LOCAL_MACHINE\SOFTWARE`).
	Snapshot(path string) (*Tree, error)
}

// TreeValue is a value inside a Tree.
type TreeValue struct {
	Name string        `json:"name"` // "" for the default value
	Type types.RegType `json:"type"`
	Data []byte        `json:"data"`
}

// Tree is a detached copy of a key and its descendants. Values and subkeys
// are sorted case-insensitively by name.
type Tree struct {
	Name   string      `json:"name"`
	Values []TreeValue `json:"values,omitempty"`
	Keys   []*Tree     `json:"keys,omitempty"`
}

// Child returns the direct subkey with the given name (case-insensitive).
func (t *Tree) Child(name string) *Tree {
	for _, k := range t.Keys {
		if EqualNames(k.Name, name) {
			return k
		}
	}
	return nil
}

// Find resolves a relative path below t.
func (t *Tree) Find(path string) *Tree {
	cur := t
	for _, seg := range SplitPath(path) {
		if cur = cur.Child(seg); cur == nil {
			return nil
		}
	}
	return cur
}

// Value returns the value with the given name (case-insensitive).
func (t *Tree) Value(name string) (TreeValue, bool) {
	for _, v := range t.Values {
		if EqualNames(v.Name, name) {
			return v, true
		}
	}
	return TreeValue{}, false
}

// Empty reports whether the key holds no values and no subkeys.
func (t *Tree) Empty() bool {
	return len(t.Values) == 0 && len(t.Keys) == 0
}

// Count returns the number of keys (including t) and values in the tree.
func (t *Tree) Count() (keys, values int) {
	keys, values = 1, len(t.Values)
	for _, k := range t.Keys {
		kk, vv := k.Count()
		keys += kk
		values += vv
	}
	return keys, values
}
