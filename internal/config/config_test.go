package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".smooai-logs", cfg.Index.LogDirName)
	assert.Contains(t, cfg.Index.Extensions, ".jsonl")
	assert.Equal(t, 32, cfg.Index.FlattenDepth)
	assert.Equal(t, 2*time.Second, cfg.Watch.Interval())
	assert.True(t, cfg.Watch.Live)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  logDirName: .custom-logs
  workers: 4
watch:
  intervalSeconds: 10
  live: false
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ".custom-logs", cfg.Index.LogDirName)
	assert.Equal(t, 4, cfg.Index.Workers)
	assert.Equal(t, 10*time.Second, cfg.Watch.Interval())
	assert.False(t, cfg.Watch.Live)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset fields keep their defaults.
	assert.Contains(t, cfg.Index.Extensions, ".log")
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - not yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
