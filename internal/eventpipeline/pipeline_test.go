package eventpipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
	"surf-core/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPipeline_FlushesOnBatchSize(t *testing.T) {
	store := newTestStore(t)
	p := New(10, nil, store, nil, 2, time.Hour, 15*time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	require.NoError(t, p.Ingest(coreapi.Event{EventID: "e1", TS: time.Now(), EventType: "click"}))
	require.NoError(t, p.Ingest(coreapi.Event{EventID: "e2", TS: time.Now(), EventType: "click"}))

	require.Eventually(t, func() bool {
		events, err := store.RecentEvents(context.Background(), 10)
		return err == nil && len(events) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestPipeline_FlushesOnIdleAfterSingleEvent(t *testing.T) {
	store := newTestStore(t)
	p := New(10, nil, store, nil, 50, time.Hour, 15*time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	require.NoError(t, p.Ingest(coreapi.Event{EventID: "solo", TS: time.Now(), EventType: "click"}))

	require.Eventually(t, func() bool {
		events, err := store.RecentEvents(context.Background(), 10)
		return err == nil && len(events) == 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}

func TestPipeline_FlushesOnContextCancel(t *testing.T) {
	store := newTestStore(t)
	p := New(10, nil, store, nil, 50, time.Hour, 15*time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	require.NoError(t, p.Ingest(coreapi.Event{EventID: "e1", TS: time.Now(), EventType: "click"}))
	cancel()
	<-done

	events, err := store.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestPipeline_IngestDropsWhenQueueFull(t *testing.T) {
	store := newTestStore(t)
	p := New(1, nil, store, nil, 50, time.Hour, 15*time.Minute, nil)

	require.NoError(t, p.Ingest(coreapi.Event{EventID: "e1", TS: time.Now(), EventType: "click"}))
	err := p.Ingest(coreapi.Event{EventID: "e2", TS: time.Now(), EventType: "click"})
	require.NoError(t, err)
}

func TestPipeline_AppliesPrivacyMaskBeforePersisting(t *testing.T) {
	store := newTestStore(t)
	mask := NewPrivacyMask("salt", []string{"password"}, nil)
	p := New(10, mask, store, nil, 1, time.Hour, 15*time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	require.NoError(t, p.Ingest(coreapi.Event{
		EventID:   "e1",
		TS:        time.Now(),
		EventType: "form_submit",
		Payload:   map[string]any{"password": "hunter2"},
	}))

	require.Eventually(t, func() bool {
		events, err := store.RecentEvents(context.Background(), 10)
		if err != nil || len(events) != 1 {
			return false
		}
		_, exists := events[0].Payload["password"]
		return !exists
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
