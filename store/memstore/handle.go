package memstore

import (
	"fmt"

	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

// handle is an open key. Operations on a closed handle fail with
// types.ErrClosed; on a handle whose key was deleted, types.ErrKeyDeleted.
type handle struct {
	s      *Store
	n      *node
	closed bool
}

var _ store.Key = (*handle)(nil)

// check validates the handle. Caller holds h.s.mu.
func (h *handle) check(op string) error {
	if h.closed {
		return fmt.Errorf("memstore: %s: %w", op, types.ErrClosed)
	}
	if h.n.deleted {
		return fmt.Errorf("memstore: %s %q: %w", op, h.n.path(), types.ErrKeyDeleted)
	}
	return nil
}

func (h *handle) OpenKey(name string, mode store.Mode) (store.Key, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if err := h.check("open"); err != nil {
		return nil, err
	}

	segs := store.SplitPath(name)
	target := store.JoinPath(append([]string{h.n.path()}, segs...)...)

	op := OpOpen
	if mode == store.Create {
		op = OpCreate
	}
	if err := h.s.fault(op, target, ""); err != nil {
		return nil, fmt.Errorf("memstore: %s %q: %w", op, target, err)
	}
	if mode == store.Create {
		base := h.n.depth()
		for i, seg := range segs {
			if err := h.s.limits.CheckKey(seg, base+i+1); err != nil {
				return nil, fmt.Errorf("memstore: create %q: %w", target, err)
			}
		}
	}

	cur := h.n
	for _, seg := range segs {
		next := cur.child(seg)
		if next == nil {
			if mode != store.Create {
				return nil, fmt.Errorf("memstore: open %q: %w", target, types.ErrNotFound)
			}
			next = newNode(seg, cur)
			cur.keys[store.FoldName(seg)] = next
		}
		cur = next
	}

	h.s.record(op, cur.path(), "")
	h.s.open++
	return &handle{s: h.s, n: cur}, nil
}

func (h *handle) SetValue(name string, t types.RegType, data []byte) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if err := h.check("set value"); err != nil {
		return err
	}
	path := h.n.path()
	if err := h.s.fault(OpSetValue, path, name); err != nil {
		return fmt.Errorf("memstore: set value %q on %q: %w", name, path, err)
	}
	if err := h.s.limits.CheckValue(name, len(data)); err != nil {
		return fmt.Errorf("memstore: set value on %q: %w", path, err)
	}

	folded := store.FoldName(name)
	if v, ok := h.n.values[folded]; ok {
		v.typ = t
		v.data = append(v.data[:0:0], data...)
	} else {
		h.n.values[folded] = &value{name: name, typ: t, data: append([]byte(nil), data...)}
	}
	h.s.record(OpSetValue, path, name)
	return nil
}

func (h *handle) DeleteValue(name string) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if err := h.check("delete value"); err != nil {
		return err
	}
	path := h.n.path()
	if err := h.s.fault(OpDeleteValue, path, name); err != nil {
		return fmt.Errorf("memstore: delete value %q on %q: %w", name, path, err)
	}

	folded := store.FoldName(name)
	if _, ok := h.n.values[folded]; !ok {
		return fmt.Errorf("memstore: delete value %q on %q: %w", name, path, types.ErrNotFound)
	}
	delete(h.n.values, folded)
	h.s.record(OpDeleteValue, path, name)
	return nil
}

func (h *handle) DeleteKey(name string) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if err := h.check("delete key"); err != nil {
		return err
	}
	segs := store.SplitPath(name)
	if len(segs) == 0 {
		return fmt.Errorf("memstore: delete key %q: %w", name, types.ErrInvalidName)
	}
	target := store.JoinPath(append([]string{h.n.path()}, segs...)...)

	parent := h.n
	for _, seg := range segs[:len(segs)-1] {
		if parent = parent.child(seg); parent == nil {
			return fmt.Errorf("memstore: delete key %q: %w", target, types.ErrNotFound)
		}
	}
	leaf := parent.child(segs[len(segs)-1])
	if leaf == nil {
		return fmt.Errorf("memstore: delete key %q: %w", target, types.ErrNotFound)
	}
	if err := h.s.fault(OpDeleteKey, leaf.path(), ""); err != nil {
		return fmt.Errorf("memstore: delete key %q: %w", target, err)
	}
	if !leaf.empty() {
		return fmt.Errorf("memstore: delete key %q: %w", target, types.ErrNotEmpty)
	}

	leaf.deleted = true
	delete(parent.keys, store.FoldName(leaf.name))
	h.s.record(OpDeleteKey, leaf.path(), "")
	return nil
}

func (h *handle) Close() error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()

	if h.closed {
		return fmt.Errorf("memstore: close: %w", types.ErrClosed)
	}
	h.closed = true
	h.s.open--
	return nil
}
