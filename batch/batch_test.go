package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
	"github.com/joshuapare/regbatch/store/memstore"
)

// seeded returns a store holding unrelated content the batches must not
// disturb, plus an open HKLM handle.
func seeded(t *testing.T) (*memstore.Store, store.Key) {
	t.Helper()
	s := memstore.New()
	require.NoError(t, s.Load(&store.Tree{Keys: []*store.Tree{{
		Name: store.HKEYLocalMachine,
		Keys: []*store.Tree{{
			Name: "SOFTWARE",
			Keys: []*store.Tree{{
				Name:   "Shared",
				Values: []store.TreeValue{{Name: "Other", Type: types.REG_SZ, Data: wstr.Encode("x")}},
			}},
		}},
	}}}))
	root, err := s.Root("HKLM")
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })
	return s, root
}

func sample(root store.Key) *Batch {
	return New(root,
		Create(`SOFTWARE\Vendor\App`,
			Default(Str("App")),
			Create("Sub", Set("Mode", Str("fast"))),
			Set("Version", Str("1.0")),
		),
		Open(`SOFTWARE\Shared`, Set("App", Str("yes"))),
	)
}

// pruning opts in to removing the intermediates of multi-segment Create
// names, which the seeded store does not hold.
var pruning = &Options{PruneParents: true}

func snapshot(t *testing.T, s *memstore.Store) *store.Tree {
	t.Helper()
	tree, err := s.Snapshot("")
	require.NoError(t, err)
	return tree
}

func journal(s *memstore.Store) []string {
	var out []string
	for _, e := range s.Journal() {
		out = append(out, e.String())
	}
	return out
}

func TestApply_WritesTree(t *testing.T) {
	s, root := seeded(t)

	applied, err := Apply(context.Background(), sample(root), nil)
	require.NoError(t, err)
	require.Equal(t, Applied{KeysOpened: 3, ValuesSet: 4}, applied)
	require.Equal(t, 1, s.OpenHandles(), "only the root handle stays open")

	app, err := s.Snapshot(`HKLM\SOFTWARE\Vendor\App`)
	require.NoError(t, err)
	def, ok := app.Value("")
	require.True(t, ok)
	require.Equal(t, types.REG_SZ, def.Type)
	require.Equal(t, wstr.Encode("App"), def.Data)
	require.NotNil(t, app.Child("Sub"))

	shared, err := s.Snapshot(`HKLM\SOFTWARE\Shared`)
	require.NoError(t, err)
	_, ok = shared.Value("App")
	require.True(t, ok)
}

func TestApplyThenRollback_RestoresStore(t *testing.T) {
	s, root := seeded(t)
	before := snapshot(t, s)

	_, err := Apply(context.Background(), sample(root), nil)
	require.NoError(t, err)

	reverted := Rollback(sample(root), pruning)
	require.Equal(t, Reverted{ValuesDeleted: 4, KeysDeleted: 3}, reverted)
	require.Equal(t, 1, s.OpenHandles())

	if diff := cmp.Diff(before, snapshot(t, s)); diff != "" {
		t.Fatalf("store not restored (-before +after):\n%s", diff)
	}
}

func TestApplyThenRollback_EmptyStore(t *testing.T) {
	s := memstore.New()
	root, err := s.Root("HKCU")
	require.NoError(t, err)
	defer root.Close()
	before := snapshot(t, s)

	b := New(root, Create(`A\B\C`, Default(Str("x"))), Create("D"))
	_, err = Apply(context.Background(), b, pruning)
	require.NoError(t, err)

	Rollback(b, pruning)
	if diff := cmp.Diff(before, snapshot(t, s)); diff != "" {
		t.Fatalf("store not restored (-before +after):\n%s", diff)
	}
}

func TestRollback_Idempotent(t *testing.T) {
	s, root := seeded(t)
	_, err := Apply(context.Background(), sample(root), nil)
	require.NoError(t, err)

	Rollback(sample(root), nil)
	once := snapshot(t, s)

	second := Rollback(sample(root), nil)
	require.Zero(t, second.ValuesDeleted)
	require.Zero(t, second.KeysDeleted)
	require.Equal(t, 1, second.KeysSkipped, "the created subtree is gone")
	require.Equal(t, 1, second.Ignored, "the value under the opened key is gone")

	if diff := cmp.Diff(once, snapshot(t, s)); diff != "" {
		t.Fatalf("second rollback changed the store:\n%s", diff)
	}
}

func TestRollback_WithoutApply(t *testing.T) {
	s, root := seeded(t)
	before := snapshot(t, s)

	Rollback(sample(root), nil)
	if diff := cmp.Diff(before, snapshot(t, s)); diff != "" {
		t.Fatalf("rollback of an unapplied batch changed the store:\n%s", diff)
	}
}

func TestApply_PartialFailureRecovers(t *testing.T) {
	tests := []struct {
		name  string
		fault memstore.Fault
		// applied is the progress made before the failure.
		applied Applied
	}{
		{
			name:    "create at depth 1",
			fault:   memstore.Fault{Op: memstore.OpCreate, Path: `HKLM\SOFTWARE\Vendor\App`},
			applied: Applied{},
		},
		{
			name:    "default value at depth 1",
			fault:   memstore.Fault{Op: memstore.OpSetValue, Path: `HKLM\SOFTWARE\Vendor\App`, Value: ""},
			applied: Applied{KeysOpened: 1},
		},
		{
			name:    "create at depth 2",
			fault:   memstore.Fault{Op: memstore.OpCreate, Path: `HKLM\SOFTWARE\Vendor\App\Sub`},
			applied: Applied{KeysOpened: 1, ValuesSet: 1},
		},
		{
			name:    "value at depth 2",
			fault:   memstore.Fault{Op: memstore.OpSetValue, Path: `HKLM\SOFTWARE\Vendor\App\Sub`, Value: "Mode"},
			applied: Applied{KeysOpened: 2, ValuesSet: 1},
		},
		{
			name:    "value after nested key",
			fault:   memstore.Fault{Op: memstore.OpSetValue, Path: `HKLM\SOFTWARE\Vendor\App`, Value: "Version"},
			applied: Applied{KeysOpened: 2, ValuesSet: 2},
		},
		{
			name:    "open existing key",
			fault:   memstore.Fault{Op: memstore.OpOpen, Path: `HKLM\SOFTWARE\Shared`},
			applied: Applied{KeysOpened: 2, ValuesSet: 3},
		},
		{
			name:    "value under opened key",
			fault:   memstore.Fault{Op: memstore.OpSetValue, Path: `HKLM\SOFTWARE\Shared`, Value: "App"},
			applied: Applied{KeysOpened: 3, ValuesSet: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, root := seeded(t)
			before := snapshot(t, s)

			fault := tt.fault
			fault.Err = types.ErrPermissionDenied
			s.Fail(fault)

			applied, err := Apply(context.Background(), sample(root), nil)
			require.ErrorIs(t, err, types.ErrPermissionDenied)
			require.Equal(t, types.E_ACCESSDENIED, types.StatusOf(err))
			require.Equal(t, tt.applied, applied)
			require.Equal(t, 1, s.OpenHandles(), "handles leaked on failure")

			s.ClearFaults()
			Rollback(sample(root), pruning)
			require.Equal(t, 1, s.OpenHandles())
			if diff := cmp.Diff(before, snapshot(t, s)); diff != "" {
				t.Fatalf("store not restored (-before +after):\n%s", diff)
			}
		})
	}
}

func TestApply_ErrorNamesThePath(t *testing.T) {
	s, root := seeded(t)
	s.Fail(memstore.Fault{Op: memstore.OpCreate, Path: `HKLM\SOFTWARE\Vendor\App\Sub`, Err: types.ErrPermissionDenied})

	_, err := Apply(context.Background(), sample(root), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `apply: create key "SOFTWARE\\Vendor\\App\\Sub"`)
}

func TestApply_OrderIsDeclared(t *testing.T) {
	s, root := seeded(t)
	s.ResetJournal()

	_, err := Apply(context.Background(), sample(root), nil)
	require.NoError(t, err)

	require.Equal(t, []string{
		`create HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App`,
		`set HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App:@`,
		`create HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App\Sub`,
		`set HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App\Sub:Mode`,
		`set HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App:Version`,
		`open HKEY_LOCAL_MACHINE\SOFTWARE\Shared`,
		`set HKEY_LOCAL_MACHINE\SOFTWARE\Shared:App`,
	}, journal(s))
}

func TestRollback_OrderIsReversed(t *testing.T) {
	s, root := seeded(t)
	_, err := Apply(context.Background(), sample(root), nil)
	require.NoError(t, err)
	s.ResetJournal()

	Rollback(sample(root), pruning)

	require.Equal(t, []string{
		`open HKEY_LOCAL_MACHINE\SOFTWARE\Shared`,
		`delete-value HKEY_LOCAL_MACHINE\SOFTWARE\Shared:App`,
		`open HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App`,
		`delete-value HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App:Version`,
		`open HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App\Sub`,
		`delete-value HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App\Sub:Mode`,
		`delete-key HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App\Sub`,
		`delete-value HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App:@`,
		`delete-key HKEY_LOCAL_MACHINE\SOFTWARE\Vendor\App`,
		`delete-key HKEY_LOCAL_MACHINE\SOFTWARE\Vendor`,
	}, journal(s))
}

func TestRollback_NeverCreatesKeys(t *testing.T) {
	s, root := seeded(t)
	s.ResetJournal()

	Rollback(New(root, Create(`Missing\Deep`, Default(Str("x")))), nil)

	require.Empty(t, journal(s))
	_, err := s.Snapshot(`HKLM\Missing`)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestRollback_OpenModeKeyIsKept(t *testing.T) {
	s, root := seeded(t)
	b := New(root, Open(`SOFTWARE\Shared`, Set("App", Str("yes"))))
	_, err := Apply(context.Background(), b, nil)
	require.NoError(t, err)

	Rollback(b, nil)

	shared, err := s.Snapshot(`HKLM\SOFTWARE\Shared`)
	require.NoError(t, err)
	require.Len(t, shared.Values, 1)
	require.Equal(t, "Other", shared.Values[0].Name)
}

func TestRollback_SwallowsFailures(t *testing.T) {
	s, root := seeded(t)
	_, err := Apply(context.Background(), sample(root), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	s.Fail(memstore.Fault{Op: memstore.OpDeleteValue, Path: `HKLM\SOFTWARE\Vendor\App\Sub`, Value: "Mode", Err: boom})

	reverted := Rollback(sample(root), nil)

	// Sub keeps its value, so neither Sub nor App can be removed, but every
	// other operation still runs.
	require.Equal(t, 3, reverted.ValuesDeleted)
	require.Equal(t, 3, reverted.Ignored)
	require.Zero(t, reverted.KeysDeleted)

	app, err := s.Snapshot(`HKLM\SOFTWARE\Vendor\App`)
	require.NoError(t, err)
	require.Empty(t, app.Values)
	shared, err := s.Snapshot(`HKLM\SOFTWARE\Shared`)
	require.NoError(t, err)
	_, ok := shared.Value("App")
	require.False(t, ok)
}

func TestRollback_KeepsIntermediatesByDefault(t *testing.T) {
	s, root := seeded(t)
	_, err := Apply(context.Background(), sample(root), nil)
	require.NoError(t, err)

	reverted := Rollback(sample(root), nil)
	require.Equal(t, 2, reverted.KeysDeleted)

	vendor, err := s.Snapshot(`HKLM\SOFTWARE\Vendor`)
	require.NoError(t, err)
	require.True(t, vendor.Empty())
}

func TestRollback_PreExistingEmptyParentSurvives(t *testing.T) {
	s, root := seeded(t)
	k, err := root.OpenKey(`SOFTWARE\Vendor`, store.Create)
	require.NoError(t, err)
	require.NoError(t, k.Close())
	before := snapshot(t, s)

	b := New(root, Create(`SOFTWARE\Vendor\App`, Default(Str("x"))))
	_, err = Apply(context.Background(), b, nil)
	require.NoError(t, err)

	reverted := Rollback(b, nil)
	require.Equal(t, Reverted{ValuesDeleted: 1, KeysDeleted: 1}, reverted)
	if diff := cmp.Diff(before, snapshot(t, s)); diff != "" {
		t.Fatalf("store not restored (-before +after):\n%s", diff)
	}
}

func TestRollback_PruningRemovesEmptyParents(t *testing.T) {
	s, root := seeded(t)
	k, err := root.OpenKey(`SOFTWARE\Vendor`, store.Create)
	require.NoError(t, err)
	require.NoError(t, k.Close())

	b := New(root, Create(`SOFTWARE\Vendor\App`, Default(Str("x"))))
	_, err = Apply(context.Background(), b, nil)
	require.NoError(t, err)

	reverted := Rollback(b, pruning)
	require.Equal(t, 2, reverted.KeysDeleted, "App and the empty Vendor; SOFTWARE still holds Shared")
	_, err = s.Snapshot(`HKLM\SOFTWARE\Vendor`)
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = s.Snapshot(`HKLM\SOFTWARE\Shared`)
	require.NoError(t, err)
}

func TestDefaultOptions(t *testing.T) {
	require.False(t, DefaultOptions().PruneParents)
}

func TestDefaultAndNamedValuesAreIndependent(t *testing.T) {
	s, root := seeded(t)
	_, err := Apply(context.Background(), New(root,
		Create("K", Default(Str("d")), Set("N", Str("n"))),
	), nil)
	require.NoError(t, err)

	// Reverting only the default value leaves the named one, which in turn
	// keeps the key alive.
	reverted := Rollback(New(root, Create("K", Default(Str("d")))), nil)
	require.Equal(t, 1, reverted.ValuesDeleted)
	require.Equal(t, 1, reverted.Ignored)

	k, err := s.Snapshot(`HKLM\K`)
	require.NoError(t, err)
	_, ok := k.Value("")
	require.False(t, ok)
	n, ok := k.Value("N")
	require.True(t, ok)
	require.Equal(t, wstr.Encode("n"), n.Data)
}

func TestApply_LastWriteWins(t *testing.T) {
	s, root := seeded(t)
	_, err := Apply(context.Background(), New(root,
		Create("K", Set("v", Str("first")), Set("V", Str("second"))),
	), nil)
	require.NoError(t, err)

	k, err := s.Snapshot(`HKLM\K`)
	require.NoError(t, err)
	require.Len(t, k.Values, 1)
	require.Equal(t, wstr.Encode("second"), k.Values[0].Data)
}

func TestApply_ContextCanceled(t *testing.T) {
	s, root := seeded(t)
	s.ResetJournal()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	applied, err := Apply(ctx, sample(root), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, types.E_ABORT, types.StatusOf(err))
	require.Zero(t, applied)
	require.Empty(t, journal(s))
}

func TestApply_NilValue(t *testing.T) {
	_, root := seeded(t)
	_, err := Apply(context.Background(), New(root, Create("K", SetValue{Name: "x"})), nil)
	require.ErrorIs(t, err, ErrNilValue)
}

func TestApplyOrRollback(t *testing.T) {
	s, root := seeded(t)
	before := snapshot(t, s)
	s.Fail(memstore.Fault{Op: memstore.OpOpen, Path: `HKLM\SOFTWARE\Shared`, Err: types.ErrPermissionDenied, Times: 1})

	builds := 0
	build := func() *Batch {
		builds++
		return sample(root)
	}
	_, err := ApplyOrRollback(context.Background(), build, pruning)
	require.ErrorIs(t, err, types.ErrPermissionDenied)
	require.Equal(t, 2, builds, "rollback uses a freshly built batch")

	if diff := cmp.Diff(before, snapshot(t, s)); diff != "" {
		t.Fatalf("store not restored (-before +after):\n%s", diff)
	}

	builds = 0
	_, err = ApplyOrRollback(context.Background(), build, nil)
	require.NoError(t, err)
	require.Equal(t, 1, builds)
}

func TestWalkAndSize(t *testing.T) {
	_, root := seeded(t)
	b := sample(root)

	var visited []string
	require.NoError(t, b.Walk(func(parent string, op Op) error {
		switch op := op.(type) {
		case Key:
			visited = append(visited, fmt.Sprintf("%s|%s key %s", parent, op.Mode, op.Name))
		case SetValue:
			visited = append(visited, valueRef(parent, op.Name))
		}
		return nil
	}))
	require.Equal(t, []string{
		`|create key SOFTWARE\Vendor\App`,
		`SOFTWARE\Vendor\App:@`,
		`SOFTWARE\Vendor\App|create key Sub`,
		`SOFTWARE\Vendor\App\Sub:Mode`,
		`SOFTWARE\Vendor\App:Version`,
		`|open key SOFTWARE\Shared`,
		`SOFTWARE\Shared:App`,
	}, visited)

	keys, values := b.Size()
	require.Equal(t, 3, keys)
	require.Equal(t, 4, values)

	stop := errors.New("stop")
	calls := 0
	err := b.Walk(func(string, Op) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
}

func TestString(t *testing.T) {
	v := Str("Apartment")
	require.Equal(t, types.REG_SZ, v.Type())
	require.Equal(t, wstr.Encode("Apartment"), v.Bytes())
	require.Equal(t, "Apartment", v.String())
}
