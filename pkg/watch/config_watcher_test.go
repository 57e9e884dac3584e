package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/wagate/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wagate.yml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  marker: /register\n"), 0644))

	reloaded := make(chan *config.Config, 4)
	w, err := NewConfigWatcher(path, 20*time.Millisecond, func(cfg *config.Config) { reloaded <- cfg })
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Invalid content is skipped.
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  history_window: -1\n"), 0644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  marker: \"!join\"\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "!join", cfg.Gateway.Marker)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wagate.yml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	reloaded := make(chan *config.Config, 4)
	w, err := NewConfigWatcher(path, 20*time.Millisecond, func(cfg *config.Config) { reloaded <- cfg })
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x: 1\n"), 0644))
	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}
}
