package printer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

var errValueNotFound = &types.Error{Kind: types.ErrKindNotFound, Msg: "value not found"}

func (p *Printer) indent(depth int) string {
	return strings.Repeat(" ", depth*p.opts.IndentSize)
}

// printKeyText prints a key in human-readable text format.
func (p *Printer) printKeyText(t *store.Tree, depth, subkeys int) error {
	indent := p.indent(depth)
	if _, err := fmt.Fprintf(p.writer, "%s[%s]\n", indent, t.Name); err != nil {
		return err
	}
	if p.opts.PrintMetadata {
		fmt.Fprintf(p.writer, "%s  Subkeys: %d, Values: %d\n", indent, subkeys, len(t.Values))
	}
	if p.opts.ShowValues {
		for _, v := range t.Values {
			if err := p.printValueText(v, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// printValueText prints a value in human-readable text format.
func (p *Printer) printValueText(v store.TreeValue, depth int) error {
	indent := p.indent(depth)
	name := v.Name
	if name == "" {
		name = DefaultValueName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%q", indent, name)
	if p.opts.ShowValueTypes {
		fmt.Fprintf(&b, " [%s]", v.Type)
	}
	b.WriteString(" = ")
	b.WriteString(p.formatData(v, indent))
	b.WriteString("\n")

	_, err := fmt.Fprint(p.writer, b.String())
	return err
}

func (p *Printer) formatData(v store.TreeValue, indent string) string {
	switch {
	case v.Type == types.REG_SZ || v.Type == types.REG_EXPAND_SZ:
		if s, err := wstr.Decode(v.Data); err == nil {
			return fmt.Sprintf("%q", s)
		}
	case v.Type == types.REG_DWORD && len(v.Data) == 4:
		n := binary.LittleEndian.Uint32(v.Data)
		return fmt.Sprintf("0x%08X (%d)", n, n)
	case v.Type == types.REG_DWORD_BE && len(v.Data) == 4:
		n := binary.BigEndian.Uint32(v.Data)
		return fmt.Sprintf("0x%08X (%d)", n, n)
	case v.Type == types.REG_QWORD && len(v.Data) == 8:
		n := binary.LittleEndian.Uint64(v.Data)
		return fmt.Sprintf("0x%016X (%d)", n, n)
	case v.Type == types.REG_MULTI_SZ:
		if ss, err := wstr.DecodeMulti(v.Data); err == nil {
			if len(ss) == 0 {
				return "[]"
			}
			var b strings.Builder
			b.WriteString("[\n")
			for _, s := range ss {
				fmt.Fprintf(&b, "%s  %q\n", indent, s)
			}
			b.WriteString(indent + "]")
			return b.String()
		}
	}

	maxBytes := p.opts.MaxValueBytes
	if maxBytes == 0 || maxBytes > len(v.Data) {
		maxBytes = len(v.Data)
	}
	truncated := ""
	if len(v.Data) > maxBytes {
		truncated = fmt.Sprintf(" (truncated, %d total bytes)", len(v.Data))
	}
	if maxBytes == 0 {
		return "<empty>" + truncated
	}
	return fmt.Sprintf("%X%s", v.Data[:maxBytes], truncated)
}

// printTreeText recursively prints a subtree in text format.
func (p *Printer) printTreeText(t *store.Tree, depth int) error {
	if p.opts.MaxDepth > 0 && depth >= p.opts.MaxDepth {
		return nil
	}
	if err := p.printKeyText(t, depth, len(t.Keys)); err != nil {
		return err
	}
	for _, k := range t.Keys {
		if err := p.printTreeText(k, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// IsValueNotFound reports whether err came from PrintValue on a missing value.
func IsValueNotFound(err error) bool {
	return errors.Is(err, errValueNotFound)
}
