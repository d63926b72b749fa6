// Package manifest reads batches from YAML documents.
//
//	root: HKEY_LOCAL_MACHINE
//	vars:
//	  NAME: Drop for Symlink
//	ops:
//	  - key: 'SOFTWARE\Classes\CLSID\${CLSID}'
//	    ops:
//	      - default: '${NAME} Factory'
//	      - key: InProcServer32
//	        ops:
//	          - default: '${MODULE}'
//	          - value: ThreadingModel
//	            data: Apartment
//	  - key: 'SOFTWARE\Microsoft\Windows\CurrentVersion\Shell Extensions\Approved'
//	    mode: open
//	    ops:
//	      - value: '${CLSID}'
//	        data: '${NAME}'
//
// Every string may reference ${VAR}; referencing a variable that is neither
// in vars nor passed to Build is an error. Only the braced form expands, so a
// lone $ as in C:\$Recycle.Bin is literal. $$ is a literal $, for text such as
// $${VAR} that must survive expansion.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/regbatch/batch"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

// Mode names accepted in the mode field.
const (
	ModeCreate = "create"
	ModeOpen   = "open"
)

// Manifest is a parsed document.
type Manifest struct {
	Root string            `yaml:"root"`
	Vars map[string]string `yaml:"vars,omitempty"`
	Ops  []Op              `yaml:"ops"`
}

// Op is one entry of an ops list. Exactly one of Key, Default or Value is
// set.
type Op struct {
	Key     string  `yaml:"key,omitempty"`
	Mode    string  `yaml:"mode,omitempty"`
	Ops     []Op    `yaml:"ops,omitempty"`
	Default *string `yaml:"default,omitempty"`
	Value   *string `yaml:"value,omitempty"`
	Data    string  `yaml:"data,omitempty"`
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalid("", "empty document")
		}
		return nil, &types.Error{Kind: types.ErrKindFormat, Msg: "manifest", Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks the structure of the document without expanding
// variables.
func (m *Manifest) Validate() error {
	if m.Root == "" {
		return invalid("root", "missing root key")
	}
	if _, ok := store.CanonicalRoot(m.Root); !ok {
		return invalid("root", "unknown root key %q", m.Root)
	}
	return validateOps("ops", m.Ops)
}

func validateOps(at string, ops []Op) error {
	for i, op := range ops {
		where := fmt.Sprintf("%s[%d]", at, i)
		set := 0
		if op.Key != "" {
			set++
		}
		if op.Default != nil {
			set++
		}
		if op.Value != nil {
			set++
		}
		if set != 1 {
			return invalid(where, "exactly one of key, default or value must be set")
		}

		if op.Key == "" {
			if op.Mode != "" || len(op.Ops) > 0 {
				return invalid(where, "mode and ops apply only to keys")
			}
			if op.Default != nil && op.Data != "" {
				return invalid(where, "default takes its data inline")
			}
			continue
		}
		if op.Data != "" {
			return invalid(where, "data applies only to values")
		}
		if _, err := parseMode(op.Mode); err != nil {
			return invalid(where, "%v", err)
		}
		if err := validateOps(where+".ops", op.Ops); err != nil {
			return err
		}
	}
	return nil
}

func parseMode(s string) (store.Mode, error) {
	switch strings.ToLower(s) {
	case "", ModeCreate:
		return store.Create, nil
	case ModeOpen:
		return store.OpenExisting, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// RootName returns the canonical name of the manifest's root key.
func (m *Manifest) RootName() string {
	name, _ := store.CanonicalRoot(m.Root)
	return name
}

// Build expands variables and returns the batch under root. vars override
// the manifest's own vars.
func (m *Manifest) Build(root store.Key, vars map[string]string) (*batch.Batch, error) {
	ops, err := m.ops(vars)
	if err != nil {
		return nil, err
	}
	return batch.New(root, ops...), nil
}

// Builder expands variables once and returns a function producing fresh
// copies of the batch, for batch.ApplyOrRollback.
func (m *Manifest) Builder(root store.Key, vars map[string]string) (batch.BuildFunc, error) {
	if _, err := m.ops(vars); err != nil {
		return nil, err
	}
	return func() *batch.Batch {
		ops, _ := m.ops(vars)
		return batch.New(root, ops...)
	}, nil
}

func (m *Manifest) ops(vars map[string]string) ([]batch.Op, error) {
	x := &expander{vars: make(map[string]string, len(m.Vars)+len(vars))}
	for k, v := range m.Vars {
		x.vars[k] = v
	}
	for k, v := range vars {
		x.vars[k] = v
	}

	ops := x.build(m.Ops)
	if len(x.missing) > 0 {
		names := make([]string, 0, len(x.missing))
		for name := range x.missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, invalid("", "undefined variables: %s", strings.Join(names, ", "))
	}
	return ops, nil
}

// varRef matches an escaped $ or a ${NAME} reference.
var varRef = regexp.MustCompile(`\$\$|\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

type expander struct {
	vars    map[string]string
	missing map[string]struct{}
}

func (x *expander) expand(s string) string {
	return varRef.ReplaceAllStringFunc(s, func(ref string) string {
		if ref == "$$" {
			return "$"
		}
		name := ref[2 : len(ref)-1]
		v, ok := x.vars[name]
		if !ok {
			if x.missing == nil {
				x.missing = make(map[string]struct{})
			}
			x.missing[name] = struct{}{}
		}
		return v
	})
}

func (x *expander) build(defs []Op) []batch.Op {
	var ops []batch.Op
	for _, d := range defs {
		switch {
		case d.Key != "":
			mode, _ := parseMode(d.Mode)
			ops = append(ops, batch.Key{
				Mode: mode,
				Name: x.expand(d.Key),
				Ops:  x.build(d.Ops),
			})
		case d.Default != nil:
			ops = append(ops, batch.Default(batch.Str(x.expand(*d.Default))))
		default:
			ops = append(ops, batch.Set(x.expand(*d.Value), batch.Str(x.expand(d.Data))))
		}
	}
	return ops
}

func invalid(at, format string, args ...any) error {
	msg := "manifest: "
	if at != "" {
		msg += at + ": "
	}
	return &types.Error{Kind: types.ErrKindFormat, Msg: msg + fmt.Sprintf(format, args...)}
}
