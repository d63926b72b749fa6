package regtext

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

// Write emits t as .reg text. A nameless tree is treated as the top level and
// each of its subkeys becomes a root section; otherwise parent is the full
// path of t's parent key. Every key gets a section, empty ones included, so
// structure survives a Parse round trip.
func Write(w io.Writer, t *store.Tree, parent string) error {
	var buf bytes.Buffer
	buf.WriteString(Header + crlf + crlf)
	if t.Name == "" {
		for _, k := range t.Keys {
			writeKey(&buf, k, k.Name)
		}
	} else {
		writeKey(&buf, t, joinParent(parent, t.Name))
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Marshal renders t like Write and encodes the text.
func Marshal(t *store.Tree, parent string, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, t, parent); err != nil {
		return nil, err
	}
	switch enc {
	case UTF8:
		return buf.Bytes(), nil
	case UTF16LE:
		return wstr.EncodeText(buf.String(), true)
	default:
		return nil, fmt.Errorf("regtext: unsupported encoding %v", enc)
	}
}

func joinParent(parent, name string) string {
	if parent == "" {
		return name
	}
	return store.JoinPath(parent, name)
}

func writeKey(buf *bytes.Buffer, t *store.Tree, path string) {
	buf.WriteString(keyOpen + path + keyClose + crlf)
	for _, v := range t.Values {
		writeValue(buf, v)
	}
	buf.WriteString(crlf)
	for _, k := range t.Keys {
		writeKey(buf, k, store.JoinPath(path, k.Name))
	}
}

func writeValue(buf *bytes.Buffer, v store.TreeValue) {
	if v.Name == "" {
		buf.WriteString(defaultValueName)
	} else {
		buf.WriteString(quote + escape(v.Name) + quote)
	}
	buf.WriteString(assign)

	switch {
	case v.Type == types.REG_SZ && isPlainString(v.Data):
		s, _ := wstr.Decode(v.Data)
		buf.WriteString(quote + escape(s) + quote)
	case v.Type == types.REG_DWORD && len(v.Data) == 4:
		fmt.Fprintf(buf, dwordPrefix+"%08x", binary.LittleEndian.Uint32(v.Data))
	case v.Type == types.REG_BINARY:
		buf.WriteString(hexPrefix)
		writeHex(buf, v.Data)
	default:
		fmt.Fprintf(buf, hexTypeFormat, uint32(v.Type))
		writeHex(buf, v.Data)
	}
	buf.WriteString(crlf)
}

// isPlainString reports whether data is exactly the canonical encoding of a
// single-line string, so the quoted form reproduces it byte for byte.
func isPlainString(data []byte) bool {
	s, err := wstr.Decode(data)
	if err != nil || strings.ContainsAny(s, "\r\n") {
		return false
	}
	return bytes.Equal(wstr.Encode(s), data)
}

func escape(s string) string {
	s = strings.ReplaceAll(s, backslash, escapedBackslash)
	return strings.ReplaceAll(s, quote, escapedQuote)
}

func writeHex(buf *bytes.Buffer, data []byte) {
	for i, b := range data {
		if i > 0 {
			buf.WriteString(hexByteSeparator)
		}
		fmt.Fprintf(buf, "%02x", b)
	}
}
