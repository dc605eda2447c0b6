package qualitygate

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

func insertRun(t *testing.T, store *storage.Store, passed bool, at time.Time) {
	t.Helper()
	require.NoError(t, store.InsertVerificationRun(context.Background(), coreapi.VerificationRun{
		ID: uuidLike(at), Class: "structural", Check: "files_exist", Passed: passed, CreatedAt: at,
	}))
}

func uuidLike(t time.Time) string { return t.String() }

func TestScore_DefaultsToOneWithNoHistory(t *testing.T) {
	g := New(newTestStore(t), 20, 0.3, nil)
	q, err := g.Score(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1.0, q.Score)
}

func TestScore_WeightsRecentRunsMore(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	insertRun(t, store, false, base)
	insertRun(t, store, true, base.Add(time.Minute))

	g := New(store, 20, 0.3, nil)
	q, err := g.Score(context.Background())
	require.NoError(t, err)
	require.Greater(t, q.Score, 0.5)
}

func TestGate_NoBaselineIsOKWithWarning(t *testing.T) {
	g := New(newTestStore(t), 20, 0.3, nil)
	res, err := g.Gate(context.Background(), `{"allowlist_count":3}`)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Contains(t, res.Warnings, "no release baseline stored")
}

func TestGate_DetectsQualityDrop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		insertRun(t, store, true, base.Add(time.Duration(i)*time.Minute))
	}

	g := New(store, 20, 0.1, nil)
	_, err := g.BuildBaseline(ctx, `{}`)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		insertRun(t, store, false, base.Add(time.Duration(100+i)*time.Minute))
	}

	res, err := g.Gate(ctx, `{}`)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.NotEmpty(t, res.Regressions)
}

func TestGate_StableScoreIsNotARegression(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		insertRun(t, store, true, base.Add(time.Duration(i)*time.Minute))
	}

	g := New(store, 20, 0.1, nil)
	_, err := g.BuildBaseline(ctx, `{}`)
	require.NoError(t, err)

	res, err := g.Gate(ctx, `{}`)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Empty(t, res.Regressions)
}

func TestBuildBaseline_DoesNotSelfCompare(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := New(store, 20, 0.1, nil)

	_, err := g.BuildBaseline(ctx, `{"v":1}`)
	require.NoError(t, err)

	baseline, found, err := store.GetReleaseBaseline(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, baseline.BaselineJSON, `"v":1`)
}
