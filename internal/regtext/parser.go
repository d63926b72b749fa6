package regtext

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

// Parse converts .reg text into a nameless tree whose subkeys are the
// predefined roots named by the file's sections.
//
// UTF-8 and UTF-16LE input are accepted, with or without a byte order mark.
// Sections create their key and any missing parents; [-path] sections and
// "name"=- lines remove what earlier lines created. Hex data may continue
// over several lines with a trailing backslash.
func Parse(data []byte) (*store.Tree, error) {
	text, err := wstr.DecodeText(data, looksUTF16(data))
	if err != nil {
		return nil, fmt.Errorf("regtext: decode: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineLength)

	top := &store.Tree{}
	var (
		current    *store.Tree
		seenHeader bool
		lineNo     int
		pending    strings.Builder
		pendingAt  int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if pending.Len() > 0 {
			pending.WriteString(line)
			if strings.HasSuffix(line, continuation) {
				continue
			}
			logical := pending.String()
			pending.Reset()
			if err := applyValueLine(current, logical, pendingAt); err != nil {
				return nil, err
			}
			continue
		}

		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		if !seenHeader {
			if line != Header {
				return nil, syntaxError(lineNo, "missing header %q", Header)
			}
			seenHeader = true
			continue
		}

		if strings.HasPrefix(line, keyOpen) {
			if !strings.HasSuffix(line, keyClose) {
				return nil, syntaxError(lineNo, "malformed section %q", line)
			}
			section := strings.TrimSuffix(strings.TrimPrefix(line, keyOpen), keyClose)
			remove := strings.HasPrefix(section, deletePrefix)
			if remove {
				section = section[len(deletePrefix):]
			}
			segs, err := sectionPath(section)
			if err != nil {
				return nil, syntaxError(lineNo, "%v", err)
			}
			if remove {
				removeKey(top, segs)
				current = nil
				continue
			}
			current = ensureKey(top, segs)
			continue
		}

		if current == nil {
			return nil, syntaxError(lineNo, "value outside of a section: %q", line)
		}
		if strings.HasSuffix(line, continuation) && !strings.HasSuffix(line, quote) {
			pending.WriteString(line)
			pendingAt = lineNo
			continue
		}
		if err := applyValueLine(current, line, lineNo); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("regtext: %w", err)
	}
	if pending.Len() > 0 {
		return nil, syntaxError(pendingAt, "unterminated line continuation")
	}
	if !seenHeader {
		return nil, syntaxError(lineNo, "missing header %q", Header)
	}

	sortTree(top)
	return top, nil
}

func syntaxError(line int, format string, args ...any) error {
	return &types.Error{
		Kind: types.ErrKindFormat,
		Msg:  fmt.Sprintf("regtext: line %d: %s", line, fmt.Sprintf(format, args...)),
	}
}

// looksUTF16 detects BOM-less UTF-16LE by the NUL high byte of the first
// character.
func looksUTF16(data []byte) bool {
	return len(data) >= 2 && data[0] != 0 && data[1] == 0
}

func sectionPath(section string) ([]string, error) {
	segs := store.SplitPath(section)
	if len(segs) == 0 {
		return nil, errors.New("empty key path")
	}
	root, ok := store.CanonicalRoot(segs[0])
	if !ok {
		return nil, fmt.Errorf("unknown root key %q", segs[0])
	}
	segs[0] = root
	return segs, nil
}

func ensureKey(top *store.Tree, segs []string) *store.Tree {
	cur := top
	for _, seg := range segs {
		next := cur.Child(seg)
		if next == nil {
			next = &store.Tree{Name: seg}
			cur.Keys = append(cur.Keys, next)
		}
		cur = next
	}
	return cur
}

func removeKey(top *store.Tree, segs []string) {
	parent := top.Find(store.JoinPath(segs[:len(segs)-1]...))
	if parent == nil {
		return
	}
	leaf := segs[len(segs)-1]
	for i, k := range parent.Keys {
		if store.EqualNames(k.Name, leaf) {
			parent.Keys = append(parent.Keys[:i], parent.Keys[i+1:]...)
			return
		}
	}
}

func setValue(t *store.Tree, v store.TreeValue) {
	for i := range t.Values {
		if store.EqualNames(t.Values[i].Name, v.Name) {
			t.Values[i].Type = v.Type
			t.Values[i].Data = v.Data
			return
		}
	}
	t.Values = append(t.Values, v)
}

func deleteValue(t *store.Tree, name string) {
	for i := range t.Values {
		if store.EqualNames(t.Values[i].Name, name) {
			t.Values = append(t.Values[:i], t.Values[i+1:]...)
			return
		}
	}
}

func sortTree(t *store.Tree) {
	sort.SliceStable(t.Values, func(i, j int) bool {
		return store.FoldName(t.Values[i].Name) < store.FoldName(t.Values[j].Name)
	})
	sort.SliceStable(t.Keys, func(i, j int) bool {
		return store.FoldName(t.Keys[i].Name) < store.FoldName(t.Keys[j].Name)
	})
	for _, k := range t.Keys {
		sortTree(k)
	}
}

// applyValueLine handles `@=...` and `"name"=...` lines.
func applyValueLine(t *store.Tree, line string, lineNo int) error {
	var name, payload string
	switch {
	case strings.HasPrefix(line, defaultValueName+assign):
		payload = line[len(defaultValueName+assign):]
	case strings.HasPrefix(line, quote):
		end := findClosingQuote(line)
		if end < 0 {
			return syntaxError(lineNo, "unterminated value name in %q", line)
		}
		name = unescape(line[1:end])
		rest := strings.TrimSpace(line[end+1:])
		if !strings.HasPrefix(rest, assign) {
			return syntaxError(lineNo, "missing %q in %q", assign, line)
		}
		payload = rest[len(assign):]
	default:
		return syntaxError(lineNo, "malformed value line %q", line)
	}

	payload = strings.TrimSpace(payload)
	if payload == deletePrefix {
		deleteValue(t, name)
		return nil
	}
	typ, data, err := parsePayload(payload)
	if err != nil {
		return syntaxError(lineNo, "value %q: %v", name, err)
	}
	setValue(t, store.TreeValue{Name: name, Type: typ, Data: data})
	return nil
}

func parsePayload(payload string) (types.RegType, []byte, error) {
	switch {
	case strings.HasPrefix(payload, quote):
		if len(payload) < 2 || findClosingQuote(payload) != len(payload)-1 {
			return 0, nil, fmt.Errorf("unterminated string %q", payload)
		}
		return types.REG_SZ, wstr.Encode(unescape(payload[1 : len(payload)-1])), nil

	case strings.HasPrefix(payload, dwordPrefix):
		digits := payload[len(dwordPrefix):]
		if len(digits) != dwordHexLength {
			return 0, nil, fmt.Errorf("invalid dword %q", payload)
		}
		n, err := strconv.ParseUint(digits, 16, 32)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid dword %q: %w", payload, err)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(n))
		return types.REG_DWORD, buf, nil

	case strings.HasPrefix(payload, hexPrefix):
		data, err := parseHexBytes(payload[len(hexPrefix):])
		return types.REG_BINARY, data, err

	case strings.HasPrefix(payload, typedHexPrefix):
		closing := strings.Index(payload, "):")
		if closing < 0 {
			return 0, nil, fmt.Errorf("malformed typed hex %q", payload)
		}
		n, err := strconv.ParseUint(payload[len(typedHexPrefix):closing], 16, 32)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid value type in %q: %w", payload, err)
		}
		data, err := parseHexBytes(payload[closing+2:])
		return types.RegType(n), data, err

	default:
		return 0, nil, fmt.Errorf("unsupported value %q", payload)
	}
}

// findClosingQuote finds the quote closing the one at position 0. A quote
// preceded by an odd number of backslashes is escaped.
func findClosingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		n := 0
		for j := i - 1; j > 0 && s[j] == '\\'; j-- {
			n++
		}
		if n%2 == 0 {
			return i
		}
	}
	return -1
}

// unescape reverses escape: \\ becomes \ and \" becomes ".
func unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == '"') {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// parseHexBytes parses comma-separated hex bytes, ignoring whitespace and
// line continuations. Empty input yields nil.
func parseHexBytes(s string) ([]byte, error) {
	var out []byte
	for _, part := range strings.Split(s, hexByteSeparator) {
		part = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || r == '\\' || r == '\r' || r == '\n' {
				return -1
			}
			return r
		}, part)
		if part == "" {
			continue
		}
		if len(part) > 2 {
			return nil, fmt.Errorf("invalid hex byte %q", part)
		}
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q", part)
		}
		out = append(out, byte(b))
	}
	return out, nil
}
