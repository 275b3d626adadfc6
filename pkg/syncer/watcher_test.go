package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

func TestWatcherDebouncesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := docDir(t, baseDoc())
	tel := telemetry.NewNopTelemetry()

	seen := make(chan telemetry.Event, 16)
	tel.Events.Subscribe(func(e telemetry.Event) {
		seen <- e
	}, telemetry.FilterByType(telemetry.EventTypeDocumentChanged))

	fired := make(chan []string, 4)
	w := NewWatcher(tel, WithDebounce(50*time.Millisecond))
	require.NoError(t, w.Watch(ctx, dir, func(_ context.Context, paths []string) error {
		fired <- paths
		return nil
	}))
	defer w.Stop()

	writeDocs(t, dir, document.FormatYAML, pageDoc())
	path := DocumentPath(dir, "DocumentType", "page", document.FormatYAML)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	select {
	case paths := <-fired:
		assert.Equal(t, []string{path}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}

	select {
	case e := <-seen:
		assert.Equal(t, path, e.Data["path"])
	case <-time.After(time.Second):
		t.Fatal("no document change event published")
	}
}

func TestWatcherStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()

	fired := make(chan struct{}, 1)
	w := NewWatcher(nil, WithDebounce(20*time.Millisecond))
	require.NoError(t, w.Watch(ctx, dir, func(context.Context, []string) error {
		fired <- struct{}{}
		return nil
	}))
	cancel()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.yaml"), []byte("kind: DocumentType\n"), 0o644))

	select {
	case <-fired:
		t.Fatal("callback ran after the context was cancelled")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w := NewWatcher(nil)
	err := w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), func(context.Context, []string) error {
		return nil
	})
	assert.Error(t, err)
	assert.NoError(t, w.Stop())
}
