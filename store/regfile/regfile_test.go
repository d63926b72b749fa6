package regfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/regbatch/internal/regtext"
	"github.com/joshuapare/regbatch/internal/wstr"
	"github.com/joshuapare/regbatch/internal/writer"
	"github.com/joshuapare/regbatch/pkg/types"
	"github.com/joshuapare/regbatch/store"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.reg")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.Equal(t, path, s.Path())

	top, err := s.Snapshot("")
	require.NoError(t, err)
	require.True(t, top.Empty())
}

func TestSaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.reg")
	s, err := Open(path, nil)
	require.NoError(t, err)

	root, err := s.Root("HKLM")
	require.NoError(t, err)
	k, err := root.OpenKey(`SOFTWARE\Vendor\Empty`, store.Create)
	require.NoError(t, err)
	require.NoError(t, k.Close())
	k, err = root.OpenKey(`SOFTWARE\Vendor`, store.OpenExisting)
	require.NoError(t, err)
	require.NoError(t, k.SetValue("", types.REG_SZ, wstr.Encode("Vendor")))
	require.NoError(t, k.Close())
	require.NoError(t, root.Close())

	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xFE}, data[:2], "UTF-16LE with BOM by default")

	reopened, err := Open(path, nil)
	require.NoError(t, err)

	want, err := s.Snapshot("")
	require.NoError(t, err)
	got, err := reopened.Snapshot("")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reopened store differs (-want +got):\n%s", diff)
	}
}

func TestSave_UTF8ToSink(t *testing.T) {
	sink := &writer.MemWriter{}
	s, err := Open(filepath.Join(t.TempDir(), "x.reg"), &Options{Encoding: regtext.UTF8, Sink: sink})
	require.NoError(t, err)

	root, err := s.Root("HKCU")
	require.NoError(t, err)
	require.NoError(t, root.SetValue("Name", types.REG_SZ, wstr.Encode("v")))
	require.NoError(t, root.Close())

	require.NoError(t, s.Save())
	require.Equal(t, 1, sink.Writes)
	require.True(t, strings.HasPrefix(string(sink.Buf), regtext.Header))
	require.Contains(t, string(sink.Buf), "[HKEY_CURRENT_USER]\r\n\"Name\"=\"v\"\r\n")
}

func TestOpen_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.reg")
	require.NoError(t, os.WriteFile(path, []byte("not a reg file\n"), 0o644))

	_, err := Open(path, nil)
	require.ErrorIs(t, err, types.ErrMalformed)
}
