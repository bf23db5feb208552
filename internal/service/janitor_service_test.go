package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-knowledgebase-be/internal/pkg/logger"
	"ai-knowledgebase-be/pkg/chunkstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_SweepsOnlyStaleStaging(t *testing.T) {
	root := t.TempDir()
	store := chunkstore.New(root)

	_, err := store.WriteChunk("stale", "c-0", 0, []byte("old"))
	require.NoError(t, err)
	_, err = store.WriteChunk("fresh", "c-0", 0, []byte("new"))
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "stale"), old, old))

	janitor := NewJanitorService(store, 24*time.Hour, time.Hour, logger.NewNopLogger())
	removed, err := janitor.SweepOnce(time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"stale"}, removed)
	assert.False(t, store.Exists("stale"))
	assert.True(t, store.Exists("fresh"))
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	janitor := NewJanitorService(chunkstore.New(t.TempDir()), time.Hour, 5*time.Millisecond, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		janitor.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
