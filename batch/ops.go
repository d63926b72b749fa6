package batch

import (
	"github.com/joshuapare/regbatch/store"
)

// Op is one mutation: SetValue or Key.
type Op interface {
	isOp()
}

// SetValue writes Value under Name on the enclosing key. An empty Name
// targets the key's default value.
type SetValue struct {
	Name  string
	Value Value
}

// Key obtains a subkey of the enclosing key and applies Ops to it.
//
// Name may be a relative path such as `Classes\CLSID`; in Create mode any
// missing intermediate keys are created too.
type Key struct {
	Mode store.Mode
	Name string
	Ops  []Op
}

func (SetValue) isOp() {}
func (Key) isOp()      {}

// Batch is a root handle plus the ordered operations to perform under it.
// A Batch is not modified by Apply or Rollback.
type Batch struct {
	Root store.Key
	Ops  []Op
}

// BuildFunc produces a fresh, structurally identical batch on every call.
type BuildFunc func() *Batch

// New returns a batch of ops under root.
func New(root store.Key, ops ...Op) *Batch {
	return &Batch{Root: root, Ops: ops}
}

// Create returns a Key op that creates name if it does not exist.
func Create(name string, ops ...Op) Key {
	return Key{Mode: store.Create, Name: name, Ops: ops}
}

// Open returns a Key op that requires name to exist.
func Open(name string, ops ...Op) Key {
	return Key{Mode: store.OpenExisting, Name: name, Ops: ops}
}

// Set returns a SetValue op for a named value.
func Set(name string, v Value) SetValue {
	return SetValue{Name: name, Value: v}
}

// Default returns a SetValue op for the default value.
func Default(v Value) SetValue {
	return SetValue{Value: v}
}

// Walk calls fn for every op in pre-order. parent is the path, relative to
// the batch root, of the key the op is applied to ("" for the root itself).
// A non-nil error from fn stops the walk and is returned.
func (b *Batch) Walk(fn func(parent string, op Op) error) error {
	return walk("", b.Ops, fn)
}

func walk(parent string, ops []Op, fn func(string, Op) error) error {
	for _, op := range ops {
		if err := fn(parent, op); err != nil {
			return err
		}
		if k, ok := op.(Key); ok {
			if err := walk(joinRel(parent, k.Name), k.Ops, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Size returns the number of keys and values the batch touches.
func (b *Batch) Size() (keys, values int) {
	_ = b.Walk(func(_ string, op Op) error {
		switch op.(type) {
		case Key:
			keys++
		case SetValue:
			values++
		}
		return nil
	})
	return keys, values
}

func joinRel(parent, name string) string {
	segs := store.SplitPath(name)
	if parent != "" {
		segs = append([]string{parent}, segs...)
	}
	return store.JoinPath(segs...)
}

// valueRef formats a value reference as path:name, with @ for the default.
func valueRef(path, name string) string {
	if name == "" {
		name = "@"
	}
	if path == "" {
		return name
	}
	return path + ":" + name
}
