package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscover_FindsLogDirsRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "svc-a", LogDirName, "app.log"), "x")
	writeFile(t, filepath.Join(root, "svc-b", "nested", LogDirName, "2024-01", "deep.log"), "x")
	writeFile(t, filepath.Join(root, "svc-b", "nested", LogDirName, "app.jsonl"), "x")
	writeFile(t, filepath.Join(root, "svc-c", "plain", "other.log"), "x")

	var w Walker
	res, err := w.Discover(root)
	require.NoError(t, err)

	// Files anywhere below a log dir are included, month subfolders too;
	// files outside a log dir are not.
	assert.Equal(t, []string{
		filepath.Join(root, "svc-a", LogDirName, "app.log"),
		filepath.Join(root, "svc-b", "nested", LogDirName, "2024-01", "deep.log"),
		filepath.Join(root, "svc-b", "nested", LogDirName, "app.jsonl"),
	}, res.Files)
}

func TestDiscover_ExtensionFilter(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, LogDirName)
	writeFile(t, filepath.Join(dir, "a.log"), "x")
	writeFile(t, filepath.Join(dir, "b.ansi"), "x")
	writeFile(t, filepath.Join(dir, "c.json"), "x")
	writeFile(t, filepath.Join(dir, "d.jsonl"), "x")
	writeFile(t, filepath.Join(dir, "skip.txt"), "x")
	writeFile(t, filepath.Join(dir, "noext"), "x")

	var w Walker
	res, err := w.Discover(root)
	require.NoError(t, err)

	assert.Len(t, res.Files, 4)
	for _, f := range res.Files {
		assert.NotContains(t, f, "skip")
		assert.NotContains(t, f, "noext")
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	var w Walker
	res, err := w.Discover(filepath.Join(t.TempDir(), "nope"))

	assert.Error(t, err)
	assert.Empty(t, res.Files)
}

func TestDiscover_EmptyRoot(t *testing.T) {
	var w Walker
	res, err := w.Discover(t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Zero(t, res.SkippedDirs)
}

func TestDiscover_StableOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "z", LogDirName, "z.log"), "x")
	writeFile(t, filepath.Join(root, "a", LogDirName, "a.log"), "x")

	var w Walker
	first, err := w.Discover(root)
	require.NoError(t, err)
	second, err := w.Discover(root)
	require.NoError(t, err)

	assert.Equal(t, first.Files, second.Files)
	assert.True(t, first.Files[0] < first.Files[1])
}

func TestDiscover_UnreadableDirSkippedAndCounted(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "open", LogDirName, "a.log"), "x")
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, LogDirName, "b.log"), "x")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var w Walker
	res, err := w.Discover(root)
	require.NoError(t, err)

	assert.Len(t, res.Files, 1)
	assert.Equal(t, 1, res.SkippedDirs)
}

func TestDiscover_CustomDirName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "logs", "a.log"), "x")

	w := Walker{DirName: "logs"}
	res, err := w.Discover(root)
	require.NoError(t, err)

	assert.Len(t, res.Files, 1)
}
