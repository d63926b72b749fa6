package types

import "fmt"

// Windows registry limits. Name lengths count UTF-16 code units.
const (
	// WindowsMaxKeyNameLen is the longest key name segment.
	WindowsMaxKeyNameLen = 255

	// WindowsMaxValueNameLen is the longest value name.
	WindowsMaxValueNameLen = 16383

	// WindowsMaxValueSize is the largest value payload stores accept by
	// default. Windows itself only bounds it by available memory, but
	// anything larger belongs in a file.
	WindowsMaxValueSize = 1 << 20

	// WindowsMaxTreeDepth is the deepest nesting of keys, counted from the
	// predefined root.
	WindowsMaxTreeDepth = 512
)

// Limits bounds names, payloads and depth accepted by a store. A zero field
// disables that check.
type Limits struct {
	MaxKeyNameLen   int
	MaxValueNameLen int
	MaxValueSize    int
	MaxTreeDepth    int
}

// DefaultLimits returns the limits the Windows registry enforces, so file and
// memory stores reject what the live registry would.
func DefaultLimits() Limits {
	return Limits{
		MaxKeyNameLen:   WindowsMaxKeyNameLen,
		MaxValueNameLen: WindowsMaxValueNameLen,
		MaxValueSize:    WindowsMaxValueSize,
		MaxTreeDepth:    WindowsMaxTreeDepth,
	}
}

// CheckKey validates one key name segment found at depth (1 for a direct
// child of a root).
func (l Limits) CheckKey(segment string, depth int) error {
	if n := utf16Len(segment); l.MaxKeyNameLen > 0 && n > l.MaxKeyNameLen {
		return &Error{
			Kind: ErrKindFormat,
			Msg:  fmt.Sprintf("key name %.32q... is %d characters, limit %d", segment, n, l.MaxKeyNameLen),
		}
	}
	if l.MaxTreeDepth > 0 && depth > l.MaxTreeDepth {
		return &Error{
			Kind: ErrKindFormat,
			Msg:  fmt.Sprintf("key depth %d exceeds limit %d", depth, l.MaxTreeDepth),
		}
	}
	return nil
}

// CheckValue validates a value name and payload size.
func (l Limits) CheckValue(name string, size int) error {
	if n := utf16Len(name); l.MaxValueNameLen > 0 && n > l.MaxValueNameLen {
		return &Error{
			Kind: ErrKindFormat,
			Msg:  fmt.Sprintf("value name is %d characters, limit %d", n, l.MaxValueNameLen),
		}
	}
	if l.MaxValueSize > 0 && size > l.MaxValueSize {
		return &Error{
			Kind: ErrKindFormat,
			Msg:  fmt.Sprintf("value %q is %d bytes, limit %d", name, size, l.MaxValueSize),
		}
	}
	return nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
