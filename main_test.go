package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), newApp(), append(args, "--log-level", "error"), &out, io.Discard)
	return out.String(), err
}

func TestCheck_ModuleManifest(t *testing.T) {
	// go test runs in the module root, next to cave.yaml.
	out, err := runCLI(t, "check", ".")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "BarLayer")
	assert.Contains(t, out, "bar.Barer <- bar.Utility")
	assert.NotContains(t, out, "FAIL")
}

func TestCheck_UnmetProvision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cave.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
layers:
  - name: BarLayer
    packages: [./cave/...]
    provides:
      - capability: Barer
        implementer: Utility
      - capability: Barer
        implementer: Bazooka
`), 0o644))

	out, err := runCLI(t, "check", ".", "--manifest", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 provisions not met")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "type Bazooka not found")
}

func TestCheck_MissingManifest(t *testing.T) {
	_, err := runCLI(t, "check", ".", "--manifest", filepath.Join(t.TempDir(), "none.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestList(t *testing.T) {
	out, err := runCLI(t, "list", ".", "--packages", "./cave/...")
	require.NoError(t, err)
	assert.Contains(t, out, "CAPABILITY")
	assert.Contains(t, out, "bar.Barer")
	assert.Contains(t, out, "bar.Utility")
}

func TestList_NothingFound(t *testing.T) {
	out, err := runCLI(t, "list", ".", "--packages", "./internal/logging")
	require.NoError(t, err)
	assert.Contains(t, out, "No capabilities with implementers found.")
}

func TestGraph(t *testing.T) {
	out, err := runCLI(t, "graph", ".", "--packages", "./cave/...")
	require.NoError(t, err)
	assert.Contains(t, out, "classDiagram")
	assert.Contains(t, out, "bar_Utility --|> bar_Barer")
}

func TestGraph_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cave.mmd")
	out, err := runCLI(t, "graph", ".", "--packages", "./cave/...", "--output", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "%%{init:")
	assert.Contains(t, string(data), "<<interface>>")
}

func TestExercise(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w

	_, execErr := runCLI(t, "exercise")

	os.Stdout = orig
	require.NoError(t, w.Close())
	printed, err := io.ReadAll(r)
	require.NoError(t, err)

	require.NoError(t, execErr)
	assert.Equal(t, "Bar!\n", string(printed))
}

func TestInvalidLogLevel(t *testing.T) {
	err := execute(context.Background(), newApp(), []string{"exercise", "--log-level", "loud"}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestExecute_ClosesLogFileOnFailure(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "cavecheck.log")
	a := newApp()

	err := execute(context.Background(), a, []string{
		"check", ".",
		"--manifest", filepath.Join(t.TempDir(), "none.yaml"),
		"--log-file", logFile,
		"--log-level", "info",
	}, io.Discard, io.Discard)
	require.Error(t, err)

	assert.Nil(t, a.cleanup, "log file left open")
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "resolved module root")
}

func TestFirstArg(t *testing.T) {
	assert.Equal(t, "", firstArg(nil))
	assert.Equal(t, "./cave", firstArg([]string{"./cave", "extra"}))
}
