package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmooAI/logdex/internal/discover"
)

func startPoller(t *testing.T, root string) (*Poller, context.CancelFunc) {
	t.Helper()
	p := NewPoller(root, 20*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = p.Run(ctx) }()
	t.Cleanup(cancel)
	return p, cancel
}

func waitEvent(t *testing.T, p *Poller, want EventType, path string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			if ev.Type == want && ev.Path == path {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s %s", want, path)
		}
	}
}

func TestPoller_CreateModifyRemove(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, discover.LogDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	p, _ := startPoller(t, root)

	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"msg\":\"a\"}\n"), 0o644))
	waitEvent(t, p, Created, path)

	// Append, with an mtime bump so low-resolution filesystems still differ.
	require.NoError(t, os.WriteFile(path, []byte("{\"msg\":\"a\"}\n{\"msg\":\"b\"}\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	waitEvent(t, p, Modified, path)

	require.NoError(t, os.Remove(path))
	waitEvent(t, p, Removed, path)
}

func TestPoller_SeedsExistingFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, discover.LogDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "pre.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"msg\":\"x\"}\n"), 0o644))

	p, _ := startPoller(t, root)

	// An unchanged pre-existing file must not produce a Created event.
	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event %v for %s", ev.Type, ev.Path)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPoller_RootRemoved(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "watched")
	require.NoError(t, os.MkdirAll(filepath.Join(root, discover.LogDirName), 0o755))

	p := NewPoller(root, 20*time.Millisecond, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	require.NoError(t, os.RemoveAll(root))

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not stop after root removal")
	}

	select {
	case err := <-p.Errors():
		assert.Error(t, err)
	default:
		t.Fatal("expected error on Errors channel")
	}
}

func TestPoller_CooperativeCancel(t *testing.T) {
	root := t.TempDir()
	p := NewPoller(root, 20*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller ignored cancellation")
	}
}
