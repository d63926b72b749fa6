package registration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/regbatch/batch"
	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
	"github.com/joshuapare/regbatch/store/memstore"
	"github.com/joshuapare/regbatch/symlink"
)

const (
	module   = `C:\Program Files\dropsym\dropsym.dll`
	classStr = "{96D16936-E510-4EA4-8EE8-BC9C0BD7057B}"
	nodeA    = `HKLM\SOFTWARE\Classes\CLSID\` + classStr
	nodeB    = `HKLM\SOFTWARE\Classes\Directory\ShellEx\DragDropHandlers\Drop for Symlink`
	nodeC    = `HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Shell Extensions\Approved`
)

// Keys every Windows installation has. Registration creates leaves below
// them and must leave them in place.
var systemParents = []string{
	`SOFTWARE\Classes\CLSID`,
	`SOFTWARE\Classes\Directory\ShellEx\DragDropHandlers`,
}

// newServer returns a server over a memstore seeded with the system parent
// keys. With approved set, the Approved key is created too.
func newServer(t *testing.T, approved bool) (*Server, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	root, err := s.Root("HKLM")
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	paths := systemParents
	if approved {
		paths = append(paths[:len(paths):len(paths)], `SOFTWARE\Microsoft\Windows\CurrentVersion\Shell Extensions\Approved`)
	}
	for _, path := range paths {
		k, err := root.OpenKey(path, store.Create)
		require.NoError(t, err)
		require.NoError(t, k.Close())
	}
	s.ResetJournal()
	return NewServer(root, DefaultConfig(module), nil), s
}

// requireUnchanged fails if the store differs from before.
func requireUnchanged(t *testing.T, s *memstore.Store, before *store.Tree) {
	t.Helper()
	after, err := s.Snapshot("")
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("store not restored (-before +after):\n%s", diff)
	}
}

func snapshotAll(t *testing.T, s *memstore.Store) *store.Tree {
	t.Helper()
	tree, err := s.Snapshot("")
	require.NoError(t, err)
	return tree
}

func value(t *testing.T, s *memstore.Store, path, name string) (string, bool) {
	t.Helper()
	tree, err := s.Snapshot(path)
	if err != nil {
		return "", false
	}
	v, ok := tree.Value(name)
	if !ok {
		return "", false
	}
	require.Equal(t, types.REG_SZ, v.Type)
	str, err := wstr.Decode(v.Data)
	require.NoError(t, err)
	return str, true
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig(module)
	require.Equal(t, classStr, cfg.ClassString())
	require.NoError(t, cfg.Validate())

	cfg.ModulePath = ""
	require.Error(t, cfg.Validate())
	cfg = DefaultConfig(module)
	cfg.CLSID = uuid.Nil
	require.Error(t, cfg.Validate())
	cfg = DefaultConfig(module)
	cfg.Name = ""
	require.Error(t, cfg.Validate())
}

func TestBatch_Shape(t *testing.T) {
	keys, values := DefaultConfig(module).Batch(nil).Size()
	require.Equal(t, 4, keys)
	require.Equal(t, 5, values)
}

// Scenario 1: applying writes Node A, its InProcServer32 child, Node B and
// the approval; applying again overwrites instead of duplicating.
func TestRegister_WritesTree(t *testing.T) {
	srv, s := newServer(t, true)

	require.Equal(t, types.S_OK, srv.Register(context.Background()))

	got, ok := value(t, s, nodeA, "")
	require.True(t, ok)
	require.Equal(t, "Drop for Symlink Factory", got)

	got, ok = value(t, s, nodeA+`\InProcServer32`, "")
	require.True(t, ok)
	require.Equal(t, module, got)
	got, ok = value(t, s, nodeA+`\InProcServer32`, "ThreadingModel")
	require.True(t, ok)
	require.Equal(t, "Apartment", got)

	got, ok = value(t, s, nodeB, "")
	require.True(t, ok)
	require.Equal(t, classStr, got)

	got, ok = value(t, s, nodeC, classStr)
	require.True(t, ok)
	require.Equal(t, "Drop for Symlink", got)

	first, err := s.Snapshot("")
	require.NoError(t, err)
	require.Equal(t, types.S_OK, srv.Register(context.Background()))
	second, err := s.Snapshot("")
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-register changed the store:\n%s", diff)
	}
	require.Equal(t, 1, s.OpenHandles())
}

// Scenario 2: a failure creating Node B is reported with its code and the
// automatic rollback leaves the store as it was.
func TestRegister_FailureRollsBack(t *testing.T) {
	srv, s := newServer(t, false)
	before := snapshotAll(t, s)
	s.Fail(memstore.Fault{Op: memstore.OpCreate, Path: nodeB, Err: types.ErrPermissionDenied})

	require.Equal(t, types.E_ACCESSDENIED, srv.Register(context.Background()))

	requireUnchanged(t, s, before)
	require.Equal(t, 1, s.OpenHandles())
}

func TestRegister_MissingApprovedKey(t *testing.T) {
	srv, s := newServer(t, false)
	before := snapshotAll(t, s)

	status := srv.Register(context.Background())
	require.Equal(t, types.StatusFromWin32(2), status)
	code, ok := status.Win32()
	require.True(t, ok)
	require.EqualValues(t, 2, code)

	requireUnchanged(t, s, before)
}

// An empty store has none of the system parents; only pruning removes the
// intermediates Register created there.
func TestRegister_EmptyStoreWithPruning(t *testing.T) {
	s := memstore.New()
	root, err := s.Root("HKLM")
	require.NoError(t, err)
	defer root.Close()

	opts := batch.DefaultOptions()
	opts.PruneParents = true
	srv := NewServer(root, DefaultConfig(module), opts)
	require.Equal(t, types.StatusFromWin32(2), srv.Register(context.Background()))

	hklm, err := s.Snapshot("HKLM")
	require.NoError(t, err)
	require.True(t, hklm.Empty(), "store should be empty, got %+v", hklm)
}

func TestRegister_InvalidConfig(t *testing.T) {
	s := memstore.New()
	root, err := s.Root("HKLM")
	require.NoError(t, err)
	defer root.Close()

	srv := NewServer(root, DefaultConfig(""), nil)
	require.Equal(t, types.E_INVALIDARG, srv.Register(context.Background()))
}

// Scenario 3: unregistering with nothing registered succeeds and changes
// nothing.
func TestUnregister_NothingRegistered(t *testing.T) {
	srv, s := newServer(t, false)
	before := snapshotAll(t, s)

	require.Equal(t, types.S_OK, srv.Unregister())

	requireUnchanged(t, s, before)
	require.Empty(t, s.Journal())
}

// Scenario 4: the opened Approved key loses only the value the batch added.
func TestUnregister_KeepsOpenedKey(t *testing.T) {
	srv, s := newServer(t, true)
	before, err := s.Snapshot("")
	require.NoError(t, err)

	require.Equal(t, types.S_OK, srv.Register(context.Background()))
	require.Equal(t, types.S_OK, srv.Unregister())

	approved, err := s.Snapshot(nodeC)
	require.NoError(t, err)
	require.True(t, approved.Empty())

	// The empty system parents survive too.
	handlers, err := s.Snapshot(`HKLM\SOFTWARE\Classes\Directory\ShellEx\DragDropHandlers`)
	require.NoError(t, err)
	require.True(t, handlers.Empty())

	requireUnchanged(t, s, before)
}

func TestInstall_IsNoOp(t *testing.T) {
	srv, s := newServer(t, false)
	s.ResetJournal()

	require.Equal(t, types.S_OK, srv.Install(true, "user"))
	require.Equal(t, types.S_OK, srv.Install(false, ""))
	require.Empty(t, s.Journal())
}

func TestClassObject(t *testing.T) {
	srv, _ := newServer(t, false)

	_, status := srv.ClassObject(uuid.Nil)
	require.Equal(t, types.E_INVALIDARG, status)

	_, status = srv.ClassObject(uuid.New())
	require.Equal(t, types.CLASS_E_CLASSNOTAVAILABLE, status)
	require.True(t, srv.CanUnloadNow())

	f, status := srv.ClassObject(DefaultCLSID)
	require.Equal(t, types.S_OK, status)
	require.EqualValues(t, 1, srv.Objects())
	require.False(t, srv.CanUnloadNow())

	_, status = f.CreateInstance(true)
	require.Equal(t, types.CLASS_E_NOAGGREGATION, status)

	h, status := f.CreateInstance(false)
	require.Equal(t, types.S_OK, status)
	require.EqualValues(t, 2, srv.Objects())

	require.Equal(t, types.S_OK, f.LockServer(true))
	f.Release()
	f.Release()
	h.Release()
	require.Zero(t, srv.Objects())
	require.False(t, srv.CanUnloadNow(), "still locked")

	require.Equal(t, types.S_OK, f.LockServer(false))
	require.True(t, srv.CanUnloadNow())

	_, status = f.CreateInstance(false)
	require.Equal(t, types.E_UNEXPECTED, status, "released factory")
}

func TestHandler_Invoke(t *testing.T) {
	srv, _ := newServer(t, false)
	f, status := srv.ClassObject(DefaultCLSID)
	require.Equal(t, types.S_OK, status)
	defer f.Release()
	h, status := f.CreateInstance(false)
	require.Equal(t, types.S_OK, status)
	defer h.Release()

	require.Equal(t, types.E_INVALIDARG, h.Initialize("", []string{"x"}))
	require.Equal(t, types.E_UNEXPECTED, h.Initialize("dst", nil))

	src := t.TempDir()
	dst := t.TempDir()
	a := filepath.Join(src, "a")
	b := filepath.Join(src, "b")
	require.NoError(t, os.WriteFile(a, nil, 0o644))
	require.NoError(t, os.WriteFile(b, nil, 0o644))

	require.Equal(t, types.S_OK, h.Initialize(dst, []string{a}))
	require.Equal(t, "Create Symlink", h.MenuText())
	require.Equal(t, types.S_OK, h.Initialize(dst, []string{b}))
	require.Equal(t, "Create Symlinks", h.MenuText())

	var links []string
	results, status := h.Invoke(&symlink.Options{
		Symlink: func(_, link string) error { links = append(links, link); return nil },
	})
	require.Equal(t, types.S_OK, status)
	require.Len(t, results, 2)
	require.Equal(t, []string{filepath.Join(dst, "a"), filepath.Join(dst, "b")}, links)

	_, status = h.Invoke(nil)
	require.Equal(t, types.E_UNEXPECTED, status, "the drop was consumed")
}

func TestHandler_InvokeAborted(t *testing.T) {
	srv, _ := newServer(t, false)
	f, _ := srv.ClassObject(DefaultCLSID)
	defer f.Release()
	h, _ := f.CreateInstance(false)
	defer h.Release()

	src := t.TempDir()
	dst := t.TempDir()
	a := filepath.Join(src, "a")
	require.NoError(t, os.WriteFile(a, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a"), nil, 0o644))

	require.Equal(t, types.S_OK, h.Initialize(dst, []string{a}))
	_, status := h.Invoke(&symlink.Options{Confirm: func(string) bool { return false }})
	require.Equal(t, types.E_ABORT, status)
}
