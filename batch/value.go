package batch

import (
	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/pkg/types"
)

// Value is data that can be stored in a registry value. Each implementation
// carries its own type tag and byte encoding.
type Value interface {
	// Type returns the registry type tag.
	Type() types.RegType
	// Bytes returns the encoded payload.
	Bytes() []byte
	// String returns a human-readable form.
	String() string
}

// String is a REG_SZ value, stored as NUL-terminated UTF-16LE.
type String string

var _ Value = String("")

func (s String) Type() types.RegType { return types.REG_SZ }
func (s String) Bytes() []byte       { return wstr.Encode(string(s)) }
func (s String) String() string      { return string(s) }

// Str returns s as a String value.
func Str(s string) String { return String(s) }
