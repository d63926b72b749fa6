// Package memstore implements store.Key over an in-memory tree.
//
// Names are case-insensitive and case-preserving, like the registry. Besides
// serving as the backing tree for store/regfile, the store supports fault
// injection, a journal of every mutating call, and open-handle accounting so
// tests can observe exactly what an engine did.
//
// The store is safe for concurrent use, but handles are not meant to be
// shared between goroutines.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

type value struct {
	name string
	typ  types.RegType
	data []byte
}

type node struct {
	name    string
	parent  *node
	keys    map[string]*node
	values  map[string]*value
	deleted bool
}

func newNode(name string, parent *node) *node {
	return &node{
		name:   name,
		parent: parent,
		keys:   make(map[string]*node),
		values: make(map[string]*value),
	}
}

func (n *node) path() string {
	var segs []string
	for cur := n; cur != nil && cur.parent != nil; cur = cur.parent {
		segs = append(segs, cur.name)
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return store.JoinPath(segs...)
}

// depth is 0 for a root key and grows by one per level below it.
func (n *node) depth() int {
	d := 0
	for p := n; p.parent != nil && p.parent.parent != nil; p = p.parent {
		d++
	}
	return d
}

func (n *node) child(name string) *node {
	return n.keys[store.FoldName(name)]
}

func (n *node) empty() bool {
	return len(n.keys) == 0 && len(n.values) == 0
}

// Store is an in-memory hierarchical store.
type Store struct {
	mu      sync.Mutex
	top     *node
	limits  types.Limits
	open    int
	faults  []*Fault
	journal []Event
}

// New creates an empty store.
func New() *Store {
	return &Store{top: newNode("", nil), limits: types.DefaultLimits()}
}

// SetLimits replaces the name, size and depth limits enforced when keys are
// created and values set. The zero Limits disables every check.
func (s *Store) SetLimits(l types.Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = l
}

// Root opens a handle on a predefined top-level key (HKLM, HKEY_CURRENT_USER, ...).
// The key is created on first use.
func (s *Store) Root(name string) (store.Key, error) {
	canonical, ok := store.CanonicalRoot(name)
	if !ok {
		return nil, fmt.Errorf("memstore: root %q: %w", name, types.ErrInvalidName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.top.child(canonical)
	if n == nil {
		n = newNode(canonical, s.top)
		s.top.keys[store.FoldName(canonical)] = n
	}
	s.open++
	return &handle{s: s, n: n}, nil
}

// OpenHandles reports the number of handles that have not been closed.
func (s *Store) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Roots returns the canonical names of the top-level keys that exist, in
// store.Roots order.
func (s *Store) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, name := range store.Roots {
		if s.top.child(name) != nil {
			names = append(names, name)
		}
	}
	return names
}

// Snapshot returns a detached copy of the key at path. An empty path returns
// a nameless tree whose subkeys are the top-level keys.
func (s *Store) Snapshot(path string) (*store.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return snapshot(n), nil
}

// Load merges a tree produced by Snapshot("") (or a .reg parse) into the
// store. Existing values with the same names are replaced.
func (s *Store) Load(top *store.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range top.Keys {
		name, ok := store.CanonicalRoot(t.Name)
		if !ok {
			return fmt.Errorf("memstore: load %q: %w", t.Name, types.ErrInvalidName)
		}
		n := s.top.child(name)
		if n == nil {
			n = newNode(name, s.top)
			s.top.keys[store.FoldName(name)] = n
		}
		load(n, t)
	}
	return nil
}

func load(n *node, t *store.Tree) {
	for _, v := range t.Values {
		n.values[store.FoldName(v.Name)] = &value{
			name: v.Name,
			typ:  v.Type,
			data: append([]byte(nil), v.Data...),
		}
	}
	for _, ct := range t.Keys {
		c := n.child(ct.Name)
		if c == nil {
			c = newNode(ct.Name, n)
			n.keys[store.FoldName(ct.Name)] = c
		}
		load(c, ct)
	}
}

func (s *Store) resolve(path string) (*node, error) {
	segs := store.SplitPath(path)
	cur := s.top
	for i, seg := range segs {
		if i == 0 {
			if root, ok := store.CanonicalRoot(seg); ok {
				seg = root
			}
		}
		if cur = cur.child(seg); cur == nil {
			return nil, fmt.Errorf("memstore: snapshot %q: %w", path, types.ErrNotFound)
		}
	}
	return cur, nil
}

func snapshot(n *node) *store.Tree {
	t := &store.Tree{Name: n.name}

	names := make([]string, 0, len(n.values))
	for folded := range n.values {
		names = append(names, folded)
	}
	sort.Strings(names)
	for _, folded := range names {
		v := n.values[folded]
		t.Values = append(t.Values, store.TreeValue{
			Name: v.name,
			Type: v.typ,
			Data: append([]byte(nil), v.data...),
		})
	}

	names = names[:0]
	for folded := range n.keys {
		names = append(names, folded)
	}
	sort.Strings(names)
	for _, folded := range names {
		t.Keys = append(t.Keys, snapshot(n.keys[folded]))
	}
	return t
}
