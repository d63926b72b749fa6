// Package wstr converts between Go strings and the registry's wide-character
// representation (UTF-16LE).
package wstr

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CodeUnitSize is the size of a UTF-16 code unit in bytes.
const CodeUnitSize = 2

var (
	utf16le    = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	utf16leBOM = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
)

// Encode returns s as NUL-terminated UTF-16LE, the layout of REG_SZ data.
// Invalid UTF-8 is replaced with U+FFFD.
func Encode(s string) []byte {
	b, err := utf16le.NewEncoder().Bytes([]byte(strings.ToValidUTF8(s, "�")))
	if err != nil {
		// Only reachable for unencodable input, which valid UTF-8 never is.
		return []byte{0, 0}
	}
	return append(b, 0, 0)
}

// Decode converts UTF-16LE data to a string, stopping at the first NUL.
// A trailing odd byte is ignored.
func Decode(data []byte) (string, error) {
	if len(data)%CodeUnitSize == 1 {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return "", nil
	}
	b, err := utf16le.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s, nil
}

// EncodeText encodes a whole document as UTF-16LE, optionally prefixed with
// a byte order mark (the form regedit writes).
func EncodeText(s string, withBOM bool) ([]byte, error) {
	enc := utf16le
	if withBOM {
		enc = utf16leBOM
	}
	return enc.NewEncoder().Bytes([]byte(s))
}

// DecodeText converts a document to UTF-8. A UTF-8 or UTF-16 byte order mark
// selects the encoding; without one, utf16 selects UTF-16LE and otherwise the
// input is taken as UTF-8.
func DecodeText(data []byte, utf16 bool) (string, error) {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	if utf16 {
		fallback = utf16le.NewDecoder()
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EncodeMulti returns the REG_MULTI_SZ layout of values: each string
// NUL-terminated, followed by an empty terminating string.
func EncodeMulti(values []string) []byte {
	var out []byte
	for _, v := range values {
		out = append(out, Encode(v)...)
	}
	return append(out, 0, 0)
}

// DecodeMulti splits REG_MULTI_SZ data into its strings. Decoding stops at
// the first empty string.
func DecodeMulti(data []byte) ([]string, error) {
	if len(data)%CodeUnitSize == 1 {
		data = data[:len(data)-1]
	}
	b, err := utf16le.NewDecoder().Bytes(data)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range strings.Split(string(b), "\x00") {
		if s == "" {
			break
		}
		out = append(out, s)
	}
	return out, nil
}
