package actionexec

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
	"surf-core/internal/storage"
)

func TestTimeoutFor(t *testing.T) {
	require.Equal(t, 3*time.Second, timeoutFor(coreapi.Action{Type: coreapi.ActionOpenApp}))
	require.Equal(t, 30*time.Second, timeoutFor(coreapi.Action{Type: coreapi.ActionShell}))
	require.Equal(t, fallbackTimeout, timeoutFor(coreapi.Action{Type: coreapi.ActionKey}))
	require.Equal(t, 5*time.Second, timeoutFor(coreapi.Action{Type: coreapi.ActionWait, Seconds: 3}))
}

func TestWaitAction(t *testing.T) {
	e := &DesktopExecutor{uiLane: newLane(), shellLane: newLane()}
	start := time.Now()
	res, err := e.Execute(context.Background(), coreapi.Action{Type: coreapi.ActionWait, Seconds: 0})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestShellAction_PersistsResult(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.Open(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	e := New(nil, nil, store, nil)
	res, err := e.Execute(context.Background(), coreapi.Action{Type: coreapi.ActionShell, Cmd: "echo hello"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Output, "hello")

	results, err := store.RecentExecResults(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "success", results[0].Status)
}

func TestShellAction_NonzeroExitIsFailure(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.Open(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	e := New(nil, nil, store, nil)
	_, err = e.Execute(context.Background(), coreapi.Action{Type: coreapi.ActionShell, Cmd: "exit 7"})
	require.Error(t, err)
}

func TestDoneReportReplyAreNoops(t *testing.T) {
	e := &DesktopExecutor{uiLane: newLane(), shellLane: newLane()}
	for _, at := range []coreapi.ActionType{coreapi.ActionDone, coreapi.ActionReport, coreapi.ActionReply, coreapi.ActionFail} {
		res, err := e.Execute(context.Background(), coreapi.Action{Type: at, Text: "x", Reason: "x"})
		require.NoError(t, err)
		require.True(t, res.Success)
	}
}

func TestUnsupportedActionIsSchemaError(t *testing.T) {
	e := &DesktopExecutor{uiLane: newLane(), shellLane: newLane()}
	_, err := e.Execute(context.Background(), coreapi.Action{Type: coreapi.ActionType("bogus")})
	require.Error(t, err)
}
