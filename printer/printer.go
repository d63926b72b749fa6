// Package printer renders store trees and batch plans as text, JSON or .reg.
package printer

import (
	"fmt"
	"io"

	"github.com/joshuapare/regbatch/store"
)

const (
	DefaultIndentSize    = 2
	DefaultMaxDepth      = 0
	DefaultMaxValueBytes = 32

	// DefaultValueName labels the unnamed value in text and JSON output.
	DefaultValueName = "(Default)"
)

// Format specifies the output format for printing.
type Format string

const (
	// FormatText outputs human-readable text format.
	FormatText Format = "text"

	// FormatJSON outputs JSON format.
	FormatJSON Format = "json"

	// FormatReg outputs Windows .reg file format.
	FormatReg Format = "reg"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatReg:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("printer: unknown format %q", s)
	}
}

// Options controls printing behavior.
type Options struct {
	// Format specifies output format (text, json, reg).
	// Default: FormatText
	Format Format

	// IndentSize is the number of spaces per indent level (text format only).
	// Default: 2
	IndentSize int

	// MaxDepth limits recursion depth of PrintTree (0 = unlimited).
	// Ignored by the reg format, which always emits the whole subtree.
	MaxDepth int

	// ShowValues includes values in output.
	// Default: true
	ShowValues bool

	// ShowValueTypes includes REG_* type names.
	// Default: true
	ShowValueTypes bool

	// MaxValueBytes limits how many bytes of binary values to display in
	// text output. Set to 0 for no limit.
	// Default: 32
	MaxValueBytes int

	// PrintMetadata includes subkey/value counts.
	// Default: false
	PrintMetadata bool
}

// DefaultOptions returns sensible defaults for printing.
func DefaultOptions() Options {
	return Options{
		Format:         FormatText,
		IndentSize:     DefaultIndentSize,
		MaxDepth:       DefaultMaxDepth,
		ShowValues:     true,
		ShowValueTypes: true,
		MaxValueBytes:  DefaultMaxValueBytes,
	}
}

// Printer handles formatted output of store contents.
type Printer struct {
	opts   Options
	writer io.Writer
	source store.Snapshotter
}

// New creates a Printer reading from src and writing to w.
//
// Example:
//
//	s, _ := regfile.Open("machine.reg", nil)
//	p := printer.New(s, os.Stdout, printer.DefaultOptions())
//	p.PrintTree(`HKLM\SOFTWARE\Classes\CLSID`)
func New(src store.Snapshotter, w io.Writer, opts Options) *Printer {
	return &Printer{source: src, writer: w, opts: opts}
}

// PrintKey prints a key and its values, without subkeys.
func (p *Printer) PrintKey(path string) error {
	tree, err := p.source.Snapshot(path)
	if err != nil {
		return fmt.Errorf("find key %q: %w", path, err)
	}
	leaf := *tree
	leaf.Keys = nil

	switch p.opts.Format {
	case FormatJSON:
		return p.writeJSON(p.jsonKey(&leaf, path, len(tree.Keys)))
	case FormatReg:
		return p.printReg(&leaf, path)
	default:
		return p.printKeyText(&leaf, 0, len(tree.Keys))
	}
}

// PrintValue prints a single value of the key at keyPath.
func (p *Printer) PrintValue(keyPath, name string) error {
	tree, err := p.source.Snapshot(keyPath)
	if err != nil {
		return fmt.Errorf("find key %q: %w", keyPath, err)
	}
	v, ok := tree.Value(name)
	if !ok {
		return fmt.Errorf("get value %q: %w", name, errValueNotFound)
	}

	switch p.opts.Format {
	case FormatJSON:
		return p.writeJSON(p.jsonValue(v))
	case FormatReg:
		return p.printReg(&store.Tree{Name: tree.Name, Values: []store.TreeValue{v}}, keyPath)
	default:
		return p.printValueText(v, 0)
	}
}

// PrintTree prints the key at path and everything below it. An empty path
// prints every root key.
func (p *Printer) PrintTree(path string) error {
	tree, err := p.source.Snapshot(path)
	if err != nil {
		return fmt.Errorf("find key %q: %w", path, err)
	}

	switch p.opts.Format {
	case FormatJSON:
		return p.writeJSON(p.jsonTree(tree, path, 0))
	case FormatReg:
		return p.printReg(tree, path)
	default:
		if tree.Name == "" {
			for _, k := range tree.Keys {
				if err := p.printTreeText(k, 0); err != nil {
					return err
				}
			}
			return nil
		}
		return p.printTreeText(tree, 0)
	}
}
