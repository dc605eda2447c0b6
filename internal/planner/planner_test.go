package planner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"surf-core/internal/actionexec"
	"surf-core/internal/approval"
	"surf-core/internal/coreapi"
	"surf-core/internal/policy"
	"surf-core/internal/sensor"
	"surf-core/internal/storage"
	"surf-core/internal/verifier"
)

type fakeSensor struct{ tree coreapi.UITree }

func (f fakeSensor) CaptureRaster(ctx context.Context) (sensor.RasterCapture, error) {
	return sensor.RasterCapture{Bytes: []byte("frame"), Format: "jpeg"}, nil
}

func (f fakeSensor) SnapshotUI(ctx context.Context, scope *sensor.Scope) (coreapi.UITree, error) {
	return f.tree, nil
}

type scriptedLLM struct {
	actions []string
	i       int
}

func (s *scriptedLLM) NextAction(ctx context.Context, req PlanRequest) (string, error) {
	if s.i >= len(s.actions) {
		return `{"action":"done"}`, nil
	}
	a := s.actions[s.i]
	s.i++
	return a, nil
}

func newTestPlanner(t *testing.T, llm PlanLLM) (*Planner, *storage.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gate := policy.New(store, approval.NewNoOpApprover(), false, false, nil)
	gate.Unlock()
	exec := actionexec.New(fakeSensor{}, nil, store, nil)
	v := verifier.New(store, nil, nil)
	return New(fakeSensor{}, exec, gate, v, llm, approval.NewNoOpApprover(), store, 40, nil), store
}

func TestRun_CompletesOnDone(t *testing.T) {
	llm := &scriptedLLM{actions: []string{`{"action":"wait","seconds":0}`, `{"action":"done"}`}}
	p, _ := newTestPlanner(t, llm)

	res, err := p.Run(context.Background(), "a trivial goal", RunOptions{MaxSteps: 5})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
}

func TestRun_ReplyReturnsText(t *testing.T) {
	llm := &scriptedLLM{actions: []string{`{"action":"reply","text":"42"}`}}
	p, _ := newTestPlanner(t, llm)

	res, err := p.Run(context.Background(), "what is the answer", RunOptions{MaxSteps: 5})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.Equal(t, "42", res.ReplyText)
}

func TestRun_MaxStepsReachedTimesOut(t *testing.T) {
	llm := &scriptedLLM{actions: []string{
		`{"action":"wait","seconds":0}`,
		`{"action":"wait","seconds":0}`,
		`{"action":"wait","seconds":0}`,
	}}
	p, _ := newTestPlanner(t, llm)

	res, err := p.Run(context.Background(), "never terminates", RunOptions{MaxSteps: 2})
	require.NoError(t, err)
	require.Equal(t, StatusTimeout, res.Status)
}

func TestRun_RepeatedActionTriggersLoopBreak(t *testing.T) {
	same := `{"action":"key","key":"down"}`
	llm := &scriptedLLM{actions: []string{same, same, same, `{"action":"done"}`}}
	p, _ := newTestPlanner(t, llm)

	res, err := p.Run(context.Background(), "stuck goal", RunOptions{MaxSteps: 10})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
}

func TestNormalizeRaw_DirectJSON(t *testing.T) {
	a, err := normalizeRaw(`{"action":"open_url","url":"https://example.com"}`)
	require.NoError(t, err)
	require.Equal(t, coreapi.ActionOpenURL, a.Type)
	require.Equal(t, "https://example.com", a.URL)
}

func TestNormalizeRaw_RepairsTrailingComma(t *testing.T) {
	a, err := normalizeRaw(`{"action":"wait","seconds":1,`)
	require.NoError(t, err)
	require.Equal(t, coreapi.ActionWait, a.Type)
}

func TestPruneHistory_KeepsMostRecent(t *testing.T) {
	history := make([]string, 100)
	for i := range history {
		history[i] = "line"
	}
	pruned := pruneHistory(history, 10, 0)
	require.Len(t, pruned, 10)
}

func TestLuckySearchURL_ExtractsQuotedQuery(t *testing.T) {
	u, ok := luckySearchURL(`Safari에서 구글 검색: 'AAPL stock price' 첫 번째 결과 열기`)
	require.True(t, ok)
	require.Contains(t, u, "btnI=1")
	require.Contains(t, u, "AAPL")
}

func TestRewriteFilesTxtListing(t *testing.T) {
	_, verifies, matched := rewriteFilesTxtListing("write files.txt with the list of files")
	require.True(t, matched)
	require.Contains(t, verifies, "files_exist:files.txt")
}
