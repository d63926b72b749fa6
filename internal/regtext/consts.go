// Package regtext reads and writes the textual .reg format produced by
// regedit, mapping it to and from store trees.
package regtext

const (
	// Header is the required first line of a version 5 .reg file.
	Header = "Windows Registry Editor Version 5.00"

	keyOpen           = "["
	keyClose          = "]"
	deletePrefix      = "-"
	assign            = "="
	defaultValueName  = "@"
	commentPrefix     = ";"
	quote             = `"`
	backslash         = `\`
	escapedQuote      = `\"`
	escapedBackslash  = `\\`
	crlf              = "\r\n"
	continuation      = `\`
	dwordPrefix       = "dword:"
	hexPrefix         = "hex:"
	typedHexPrefix    = "hex("
	hexTypeFormat     = "hex(%x):"
	hexByteSeparator  = ","
	dwordHexLength    = 8
	maxLineLength     = 1024 * 1024
	initialLineBuffer = 64 * 1024
)

// Encoding selects the byte encoding of emitted .reg text.
type Encoding uint8

const (
	// UTF16LE with a byte order mark is what regedit writes.
	UTF16LE Encoding = iota
	// UTF8 writes plain UTF-8 without a byte order mark.
	UTF8
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case UTF16LE:
		return "UTF-16LE"
	case UTF8:
		return "UTF-8"
	default:
		return "unknown"
	}
}

// ParseEncoding maps a name such as "utf-8" or "UTF-16LE" to an Encoding.
func ParseEncoding(name string) (Encoding, bool) {
	switch name {
	case "", "utf-16le", "UTF-16LE", "utf16", "UTF16":
		return UTF16LE, true
	case "utf-8", "UTF-8", "utf8", "UTF8":
		return UTF8, true
	default:
		return 0, false
	}
}
