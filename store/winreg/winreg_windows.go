//go:build windows

package winreg

import (
	"errors"
	"fmt"
	"sort"
	"syscall"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

var predefined = map[string]registry.Key{
	store.HKEYLocalMachine:  registry.LOCAL_MACHINE,
	store.HKEYCurrentUser:   registry.CURRENT_USER,
	store.HKEYClassesRoot:   registry.CLASSES_ROOT,
	store.HKEYUsers:         registry.USERS,
	store.HKEYCurrentConfig: registry.CURRENT_CONFIG,
}

// Root opens a handle on a predefined key. Closing it is a no-op apart from
// invalidating the handle.
func (s *Store) Root(name string) (store.Key, error) {
	canonical, ok := store.CanonicalRoot(name)
	if !ok {
		return nil, fmt.Errorf("winreg: root %q: %w", name, types.ErrInvalidName)
	}
	return &key{k: predefined[canonical], path: canonical, predefined: true}, nil
}

// Snapshot reads the key at path and everything below it.
func (s *Store) Snapshot(path string) (*store.Tree, error) {
	root, rest, ok := store.SplitRoot(path)
	if !ok {
		return nil, fmt.Errorf("winreg: snapshot %q: %w", path, types.ErrInvalidName)
	}
	k, err := registry.OpenKey(predefined[root], rest, registry.READ)
	if err != nil {
		return nil, mapErr("snapshot", path, err)
	}
	defer k.Close()

	name := root
	if segs := store.SplitPath(rest); len(segs) > 0 {
		name = segs[len(segs)-1]
	}
	return readTree(k, name, store.JoinPath(root, rest))
}

func readTree(k registry.Key, name, path string) (*store.Tree, error) {
	t := &store.Tree{Name: name}

	valueNames, err := k.ReadValueNames(-1)
	if err != nil {
		return nil, mapErr("read values", path, err)
	}
	sortFolded(valueNames)
	for _, vn := range valueNames {
		n, typ, err := k.GetValue(vn, nil)
		if err != nil {
			return nil, mapErr("read value", path, err)
		}
		data := make([]byte, n)
		if n > 0 {
			if _, _, err := k.GetValue(vn, data); err != nil {
				return nil, mapErr("read value", path, err)
			}
		}
		t.Values = append(t.Values, store.TreeValue{Name: vn, Type: types.RegType(typ), Data: data})
	}

	subNames, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, mapErr("read subkeys", path, err)
	}
	sortFolded(subNames)
	for _, sn := range subNames {
		sub, err := registry.OpenKey(k, sn, registry.READ)
		if err != nil {
			// Keys we may not read are left out of the snapshot.
			if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
				continue
			}
			return nil, mapErr("open", store.JoinPath(path, sn), err)
		}
		child, err := readTree(sub, sn, store.JoinPath(path, sn))
		sub.Close()
		if err != nil {
			return nil, err
		}
		t.Keys = append(t.Keys, child)
	}
	return t, nil
}

func sortFolded(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return store.FoldName(names[i]) < store.FoldName(names[j])
	})
}

type key struct {
	k          registry.Key
	path       string
	predefined bool
	closed     bool
}

var _ store.Key = (*key)(nil)

func (h *key) OpenKey(name string, mode store.Mode) (store.Key, error) {
	if h.closed {
		return nil, fmt.Errorf("winreg: open: %w", types.ErrClosed)
	}
	rel := store.JoinPath(store.SplitPath(name)...)
	path := store.JoinPath(h.path, rel)

	var (
		k   registry.Key
		err error
	)
	if mode == store.Create {
		k, _, err = registry.CreateKey(h.k, rel, registry.ALL_ACCESS)
	} else {
		k, err = registry.OpenKey(h.k, rel, registry.ALL_ACCESS)
	}
	if err != nil {
		return nil, mapErr(mode.String(), path, err)
	}
	return &key{k: k, path: path}, nil
}

func (h *key) SetValue(name string, t types.RegType, data []byte) error {
	if h.closed {
		return fmt.Errorf("winreg: set value: %w", types.ErrClosed)
	}

	var err error
	switch {
	case t == types.REG_SZ || t == types.REG_EXPAND_SZ:
		var s string
		if s, err = wstr.Decode(data); err != nil {
			return fmt.Errorf("winreg: set value %q on %q: %w", name, h.path, err)
		}
		if t == types.REG_SZ {
			err = h.k.SetStringValue(name, s)
		} else {
			err = h.k.SetExpandStringValue(name, s)
		}
	case t == types.REG_MULTI_SZ:
		var ss []string
		if ss, err = wstr.DecodeMulti(data); err != nil {
			return fmt.Errorf("winreg: set value %q on %q: %w", name, h.path, err)
		}
		err = h.k.SetStringsValue(name, ss)
	case t == types.REG_DWORD && len(data) == 4:
		err = h.k.SetDWordValue(name, uint32(data[0])|uint32(data[1])<<8|uint32(data[2])<<16|uint32(data[3])<<24)
	case t == types.REG_QWORD && len(data) == 8:
		var v uint64
		for i := 7; i >= 0; i-- {
			v = v<<8 | uint64(data[i])
		}
		err = h.k.SetQWordValue(name, v)
	case t == types.REG_BINARY:
		err = h.k.SetBinaryValue(name, data)
	default:
		return fmt.Errorf("winreg: set value %q of type %s: %w", name, t, types.ErrUnsupported)
	}
	if err != nil {
		return mapErr(fmt.Sprintf("set value %q on", name), h.path, err)
	}
	return nil
}

func (h *key) DeleteValue(name string) error {
	if h.closed {
		return fmt.Errorf("winreg: delete value: %w", types.ErrClosed)
	}
	if err := h.k.DeleteValue(name); err != nil {
		return mapErr(fmt.Sprintf("delete value %q on", name), h.path, err)
	}
	return nil
}

func (h *key) DeleteKey(name string) error {
	if h.closed {
		return fmt.Errorf("winreg: delete key: %w", types.ErrClosed)
	}
	segs := store.SplitPath(name)
	if len(segs) == 0 {
		return fmt.Errorf("winreg: delete key %q: %w", name, types.ErrInvalidName)
	}
	rel := store.JoinPath(segs...)
	if err := registry.DeleteKey(h.k, rel); err != nil {
		return mapErr("delete key", store.JoinPath(h.path, rel), err)
	}
	return nil
}

func (h *key) Close() error {
	if h.closed {
		return fmt.Errorf("winreg: close: %w", types.ErrClosed)
	}
	h.closed = true
	if h.predefined {
		return nil
	}
	if err := h.k.Close(); err != nil {
		return mapErr("close", h.path, err)
	}
	return nil
}

// mapErr converts a Win32 error into a typed error carrying its status code.
func mapErr(op, path string, err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return fmt.Errorf("winreg: %s %q: %w", op, path, err)
	}

	var kind types.ErrKind
	switch errno {
	case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND:
		kind = types.ErrKindNotFound
	case windows.ERROR_ACCESS_DENIED:
		kind = types.ErrKindPermission
	case windows.ERROR_DIR_NOT_EMPTY:
		kind = types.ErrKindNotEmpty
	case windows.ERROR_KEY_DELETED, windows.ERROR_INVALID_HANDLE:
		kind = types.ErrKindState
	default:
		return fmt.Errorf("winreg: %s %q: %w", op, path, err)
	}
	return &types.Error{
		Kind: kind,
		Msg:  fmt.Sprintf("winreg: %s %q", op, path),
		Code: types.StatusFromWin32(uint32(errno)),
		Err:  err,
	}
}
