package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/regbatch/internal/config"
	"github.com/joshuapare/regbatch/printer"
)

// approvedSeed is a .reg store holding only the Approved key, which register
// expects to exist.
const approvedSeed = "Windows Registry Editor Version 5.00\r\n\r\n" +
	"[HKEY_LOCAL_MACHINE\\SOFTWARE\\Microsoft\\Windows\\CurrentVersion\\Shell Extensions\\Approved]\r\n" +
	"\"{00000000-1111-2222-3333-444444444444}\"=\"Other\"\r\n\r\n"

// resetGlobals restores every flag variable to its default.
func resetGlobals(t *testing.T) {
	t.Helper()
	storePath, configPath, logLevel, logDir = "", "", "", ""
	verbose, quiet, jsonOut = false, false, false
	settings = config.Default()

	regModule, regCLSID, regName = "", "", ""
	installUndo, installCmdLn = false, ""
	manifestPath, manifestVars, applyDryRun, pruneParents = "", nil, false, false
	dumpFormat, dumpDepth, dumpNoValues, dumpMaxBytes, dumpMeta = "text", 0, false, printer.DefaultMaxValueBytes, false
	linkYes = false
	promptInput = os.Stdin
}

// storeFile writes content to a .reg file in a temp dir and selects it as
// the store.
func storeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.reg")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	settings.Store = path
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), fnErr
}
