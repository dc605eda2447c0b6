package policy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"surf-core/internal/approval"
	"surf-core/internal/coreapi"
	"surf-core/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClassify_NonMutatingIsAuto(t *testing.T) {
	g := New(newTestStore(t), nil, false, false, nil)
	lvl, err := g.Classify(context.Background(), coreapi.Action{Type: coreapi.ActionWait, Seconds: 1})
	require.NoError(t, err)
	require.Equal(t, LevelAuto, lvl)
}

func TestClassify_MutatingWarnsWhileLocked(t *testing.T) {
	g := New(newTestStore(t), nil, false, false, nil)
	require.True(t, g.IsLocked())
	lvl, err := g.Classify(context.Background(), coreapi.Action{Type: coreapi.ActionClickRef, Ref: "r1"})
	require.NoError(t, err)
	require.Equal(t, LevelWarn, lvl)

	g.Unlock()
	lvl, err = g.Classify(context.Background(), coreapi.Action{Type: coreapi.ActionClickRef, Ref: "r1"})
	require.NoError(t, err)
	require.Equal(t, LevelAuto, lvl)
}

func TestCheckShell_HardBlockedNeverRuns(t *testing.T) {
	g := New(newTestStore(t), nil, false, false, nil)
	dec, err := g.CheckShell(context.Background(), "rm -rf /", "/tmp")
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, LevelBlocked, dec.Level)
}

func TestCheckShell_CompositesBlockedByDefault(t *testing.T) {
	g := New(newTestStore(t), nil, false, false, nil)
	dec, err := g.CheckShell(context.Background(), "ls && rm file", "/tmp")
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, LevelBlocked, dec.Level)
}

func TestCheckShell_AllowlistExactMatch(t *testing.T) {
	store := newTestStore(t)
	g := New(store, nil, false, false, nil)
	require.NoError(t, store.InsertAllowlistEntry(context.Background(), coreapi.ExecAllowlistEntry{
		ID: "e1", Pattern: "ls -1", Cwd: "/Users/me/proj", CreatedAt: time.Now(),
	}))

	dec, err := g.CheckShell(context.Background(), "ls -1", "/Users/me/proj")
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	require.Equal(t, LevelAuto, dec.Level)
}

func TestCheckShell_AllowlistCwdScopeEnforced(t *testing.T) {
	store := newTestStore(t)
	g := New(store, approval.NewNoOpApprover(), false, false, nil)
	require.NoError(t, store.InsertAllowlistEntry(context.Background(), coreapi.ExecAllowlistEntry{
		ID: "e1", Pattern: "ls -1", Cwd: "/Users/me/proj", CreatedAt: time.Now(),
	}))

	// Different cwd: the entry must not match (§3 invariant).
	dec, err := g.CheckShell(context.Background(), "ls -1", "/somewhere/else")
	require.NoError(t, err)
	require.True(t, dec.Allowed) // falls through to the no-op approver, which allows
	require.NotEqual(t, "matched allowlist", dec.Reason)
}

func TestCheckShell_PrefixGlob(t *testing.T) {
	store := newTestStore(t)
	g := New(store, nil, false, false, nil)
	require.NoError(t, store.InsertAllowlistEntry(context.Background(), coreapi.ExecAllowlistEntry{
		ID: "e1", Pattern: "git status*", CreatedAt: time.Now(),
	}))
	dec, err := g.CheckShell(context.Background(), "git status --short", "")
	require.NoError(t, err)
	require.True(t, dec.Allowed)
}

func TestCheckShell_RegexPattern(t *testing.T) {
	store := newTestStore(t)
	g := New(store, nil, false, false, nil)
	require.NoError(t, store.InsertAllowlistEntry(context.Background(), coreapi.ExecAllowlistEntry{
		ID: "e1", Pattern: `re:^npm (test|run build)$`, CreatedAt: time.Now(),
	}))
	dec, err := g.CheckShell(context.Background(), "npm test", "")
	require.NoError(t, err)
	require.True(t, dec.Allowed)
}

func TestCheckShell_NoApproverReturnsApprovalRequired(t *testing.T) {
	store := newTestStore(t)
	g := New(store, nil, false, false, nil)
	dec, err := g.CheckShell(context.Background(), "curl https://example.com", "/tmp")
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, LevelApprovalRequired, dec.Level)
	require.NotEmpty(t, dec.ApprovalID)
}

func TestApplyDecision_AllowAlwaysAddsAllowlistEntry(t *testing.T) {
	store := newTestStore(t)
	g := New(store, nil, false, false, nil)
	dec, err := g.CheckShell(context.Background(), "npm run lint", "/tmp")
	require.NoError(t, err)
	require.Equal(t, LevelApprovalRequired, dec.Level)

	final, err := g.ApplyDecision(context.Background(), dec.ApprovalID, coreapi.DecisionAllowAlways)
	require.NoError(t, err)
	require.True(t, final.Allowed)

	// Subsequent identical command now matches the allowlist directly.
	dec2, err := g.CheckShell(context.Background(), "npm run lint", "/tmp")
	require.NoError(t, err)
	require.True(t, dec2.Allowed)
	require.Equal(t, "matched allowlist", dec2.Reason)
}

func TestApplyDecision_ExpiredApprovalTreatedAsNotApproved(t *testing.T) {
	store := newTestStore(t)
	g := New(store, nil, false, false, nil)
	g.approvalTTL = -1 * time.Second // force immediate expiry

	dec, err := g.CheckShell(context.Background(), "npm run build", "/tmp")
	require.NoError(t, err)
	require.Equal(t, LevelApprovalRequired, dec.Level)

	final, err := g.ApplyDecision(context.Background(), dec.ApprovalID, coreapi.DecisionAllowOnce)
	require.NoError(t, err)
	require.False(t, final.Allowed)
	require.Equal(t, LevelBlocked, final.Level)
}
