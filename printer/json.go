package printer

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

// jsonKey represents a key in JSON format.
type jsonKey struct {
	Name     string      `json:"name"`
	Path     string      `json:"path,omitempty"`
	Subkeys  *int        `json:"subkeys,omitempty"`
	ValueN   *int        `json:"value_count,omitempty"`
	Values   []jsonValue `json:"values,omitempty"`
	Children []jsonKey   `json:"children,omitempty"`
}

// jsonValue represents a value in JSON format.
type jsonValue struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Data any    `json:"data"`
}

func (p *Printer) jsonKey(t *store.Tree, path string, subkeys int) jsonKey {
	key := jsonKey{Name: t.Name, Path: path}
	if p.opts.PrintMetadata {
		n, v := subkeys, len(t.Values)
		key.Subkeys, key.ValueN = &n, &v
	}
	if p.opts.ShowValues {
		for _, v := range t.Values {
			key.Values = append(key.Values, p.jsonValue(v))
		}
	}
	return key
}

func (p *Printer) jsonTree(t *store.Tree, path string, depth int) jsonKey {
	key := p.jsonKey(t, path, len(t.Keys))
	if p.opts.MaxDepth > 0 && depth+1 >= p.opts.MaxDepth {
		return key
	}
	for _, k := range t.Keys {
		childPath := k.Name
		if path != "" {
			childPath = store.JoinPath(path, k.Name)
		}
		key.Children = append(key.Children, p.jsonTree(k, childPath, depth+1))
	}
	return key
}

func (p *Printer) jsonValue(v store.TreeValue) jsonValue {
	name := v.Name
	if name == "" {
		name = DefaultValueName
	}
	out := jsonValue{Name: name, Data: decodeValueJSON(v)}
	if p.opts.ShowValueTypes {
		out.Type = v.Type.String()
	}
	return out
}

// decodeValueJSON converts value data into a JSON-friendly form. Data that
// does not match its type is rendered as hex.
func decodeValueJSON(v store.TreeValue) any {
	switch {
	case v.Type == types.REG_SZ || v.Type == types.REG_EXPAND_SZ:
		if s, err := wstr.Decode(v.Data); err == nil {
			return s
		}
	case v.Type == types.REG_DWORD && len(v.Data) == 4:
		return binary.LittleEndian.Uint32(v.Data)
	case v.Type == types.REG_DWORD_BE && len(v.Data) == 4:
		return binary.BigEndian.Uint32(v.Data)
	case v.Type == types.REG_QWORD && len(v.Data) == 8:
		return binary.LittleEndian.Uint64(v.Data)
	case v.Type == types.REG_MULTI_SZ:
		if ss, err := wstr.DecodeMulti(v.Data); err == nil {
			if ss == nil {
				ss = []string{}
			}
			return ss
		}
	}
	return hex.EncodeToString(v.Data)
}

func (p *Printer) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.writer, "%s\n", data)
	return err
}
