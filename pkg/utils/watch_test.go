package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackline/log"
)

func TestWatchFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "track.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan string, 10)
	done := make(chan error, 1)
	go func() {
		done <- WatchFiles(ctx, log.Default(), []string{dir}, 50*time.Millisecond,
			func(name string) { changes <- name })
	}()
	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	for range 3 {
		require.NoError(t, os.WriteFile(file, []byte(`{"a":1}`), 0o600))
	}
	select {
	case name := <-changes:
		assert.Equal(t, file, name)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
	// writes were debounced into a single notification
	select {
	case name := <-changes:
		t.Fatalf("unexpected second change %s", name)
	case <-time.After(200 * time.Millisecond):
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestWatchFilesMissing(t *testing.T) {
	err := WatchFiles(context.Background(), log.Default(),
		[]string{filepath.Join(t.TempDir(), "missing")}, time.Millisecond, func(string) {})
	assert.Error(t, err)
}
