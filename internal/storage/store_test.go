package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"surf-core/internal/coreapi"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "core.sqlite"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndQueryEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		e := coreapi.Event{
			EventID:   "evt-" + string(rune('a'+i)),
			TS:        base.Add(time.Duration(i) * time.Minute),
			Source:    coreapi.SourceKeyboard,
			EventType: "keypress",
			Priority:  coreapi.P2,
		}
		if err := s.InsertEvent(ctx, e); err != nil {
			t.Fatalf("insert event %d: %v", i, err)
		}
	}

	got, err := s.EventsBetween(ctx, base, base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("events between: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].EventID != "evt-a" {
		t.Errorf("expected oldest-first ordering, got %s first", got[0].EventID)
	}

	recent, err := s.RecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(recent) != 2 || recent[0].EventID != "evt-c" {
		t.Errorf("expected newest-first ordering of length 2, got %+v", recent)
	}
}

func TestInsertAndQuerySessions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess := coreapi.Session{
		SessionID: "sess-1",
		StartTS:   time.Unix(1700000000, 0),
		EndTS:     time.Unix(1700000600, 0),
		Duration:  10 * time.Minute,
		Summary:   coreapi.SessionSummary{TopApp: "Editor", EventCount: 42},
	}
	if err := s.InsertSession(ctx, sess); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	got, err := s.RecentSessions(ctx, 5)
	if err != nil {
		t.Fatalf("recent sessions: %v", err)
	}
	if len(got) != 1 || got[0].Summary.TopApp != "Editor" {
		t.Fatalf("unexpected sessions: %+v", got)
	}
}

func TestRecommendationFingerprintDedup(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p1 := coreapi.AutomationProposal{
		ID: "rec-1", Status: coreapi.ProposalPending,
		Title: "Daily Report", Trigger: "9am", Confidence: 0.8, CreatedAt: time.Now(),
	}
	if err := s.InsertRecommendation(ctx, p1); err != nil {
		t.Fatalf("insert recommendation: %v", err)
	}

	exists, err := s.ExistsByFingerprint(ctx, p1.Fingerprint())
	if err != nil || !exists {
		t.Fatalf("expected fingerprint to exist, err=%v exists=%v", err, exists)
	}

	p2 := coreapi.AutomationProposal{
		ID: "rec-2", Status: coreapi.ProposalPending,
		Title: "daily report", Trigger: "9AM", Confidence: 0.9, CreatedAt: time.Now(),
	}
	if err := s.InsertRecommendation(ctx, p2); err != nil {
		t.Fatalf("insert duplicate recommendation: %v", err)
	}

	_, found, err := s.GetRecommendation(ctx, "rec-2")
	if err != nil {
		t.Fatalf("get recommendation: %v", err)
	}
	if found {
		t.Error("expected duplicate fingerprint insert to be ignored, not stored under new id")
	}

	if err := s.UpdateRecommendationStatus(ctx, "rec-1", coreapi.ProposalApproved); err != nil {
		t.Fatalf("update status: %v", err)
	}
	approved, err := s.RecommendationsByStatus(ctx, coreapi.ProposalApproved)
	if err != nil {
		t.Fatalf("recommendations by status: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != "rec-1" {
		t.Fatalf("unexpected approved set: %+v", approved)
	}
}

func TestExecApprovalLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now()
	a := coreapi.ExecApproval{
		ID: "appr-1", Command: "rm -rf build/", CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute), Status: coreapi.ExecApprovalPending,
	}
	if err := s.InsertExecApproval(ctx, a); err != nil {
		t.Fatalf("insert exec approval: %v", err)
	}

	pending, err := s.PendingExecApprovals(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending approval, got %d err=%v", len(pending), err)
	}

	if err := s.ResolveExecApproval(ctx, "appr-1", coreapi.DecisionAllowOnce, now.Add(time.Minute)); err != nil {
		t.Fatalf("resolve exec approval: %v", err)
	}
	got, found, err := s.GetExecApproval(ctx, "appr-1")
	if err != nil || !found {
		t.Fatalf("get exec approval: found=%v err=%v", found, err)
	}
	if got.Status != coreapi.ExecApprovalResolved || got.Decision != coreapi.DecisionAllowOnce {
		t.Errorf("unexpected resolved approval: %+v", got)
	}
	if got.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}
}

func TestAllowlistAndExecResults(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	entry := coreapi.ExecAllowlistEntry{ID: "al-1", Pattern: "git status", CreatedAt: time.Now()}
	if err := s.InsertAllowlistEntry(ctx, entry); err != nil {
		t.Fatalf("insert allowlist entry: %v", err)
	}
	list, err := s.ListAllowlist(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 allowlist entry, got %d err=%v", len(list), err)
	}
	if err := s.RemoveAllowlistEntry(ctx, "al-1"); err != nil {
		t.Fatalf("remove allowlist entry: %v", err)
	}
	list, err = s.ListAllowlist(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected allowlist to be empty after removal, got %d", len(list))
	}

	res := coreapi.ExecResult{
		ID: "res-1", Command: "git status", Status: "success", ExitCode: 0,
		StartedAt: time.Now(), FinishedAt: time.Now().Add(time.Second),
	}
	if err := s.InsertExecResult(ctx, res); err != nil {
		t.Fatalf("insert exec result: %v", err)
	}
	recent, err := s.RecentExecResults(ctx, 5)
	if err != nil || len(recent) != 1 {
		t.Fatalf("expected 1 exec result, got %d err=%v", len(recent), err)
	}
}

func TestQualityBaselineAndJudgmentState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	v := coreapi.VerificationRun{ID: "v-1", Class: "structural", Check: "files exist", Passed: true, CreatedAt: time.Now()}
	if err := s.InsertVerificationRun(ctx, v); err != nil {
		t.Fatalf("insert verification run: %v", err)
	}
	runs, err := s.RecentVerificationRuns(ctx, 5)
	if err != nil || len(runs) != 1 || !runs[0].Passed {
		t.Fatalf("unexpected verification runs: %+v err=%v", runs, err)
	}

	q := coreapi.QualityScore{ID: "q-1", Score: 0.93, Basis: "last 10 runs", CreatedAt: time.Now()}
	if err := s.InsertQualityScore(ctx, q); err != nil {
		t.Fatalf("insert quality score: %v", err)
	}
	latest, found, err := s.LatestQualityScore(ctx)
	if err != nil || !found || latest.Score != 0.93 {
		t.Fatalf("unexpected latest quality score: %+v found=%v err=%v", latest, found, err)
	}

	baseline := coreapi.ReleaseBaseline{BaselineJSON: `{"build":"ok"}`, UpdatedAt: time.Now()}
	if err := s.SetReleaseBaseline(ctx, baseline); err != nil {
		t.Fatalf("set release baseline: %v", err)
	}
	gotBaseline, found, err := s.GetReleaseBaseline(ctx)
	if err != nil || !found || gotBaseline.BaselineJSON != baseline.BaselineJSON {
		t.Fatalf("unexpected baseline: %+v found=%v err=%v", gotBaseline, found, err)
	}
	updated := coreapi.ReleaseBaseline{BaselineJSON: `{"build":"passing"}`, UpdatedAt: time.Now()}
	if err := s.SetReleaseBaseline(ctx, updated); err != nil {
		t.Fatalf("update release baseline: %v", err)
	}
	gotBaseline, _, _ = s.GetReleaseBaseline(ctx)
	if gotBaseline.BaselineJSON != updated.BaselineJSON {
		t.Errorf("expected baseline overwrite, got %s", gotBaseline.BaselineJSON)
	}

	if err := s.SetJudgmentState(ctx, `{"plan_key":"abc"}`, time.Now()); err != nil {
		t.Fatalf("set judgment state: %v", err)
	}
	state, found, err := s.GetJudgmentState(ctx)
	if err != nil || !found || state != `{"plan_key":"abc"}` {
		t.Fatalf("unexpected judgment state: %q found=%v err=%v", state, found, err)
	}
}
