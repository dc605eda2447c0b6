package storage

import (
	"context"
	"database/sql"
	"time"

	"surf-core/internal/coreapi"
)

// InsertVerificationRun persists one Verifier invocation's outcome.
func (s *Store) InsertVerificationRun(ctx context.Context, v coreapi.VerificationRun) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO verification_runs (id, class, check_text, passed, detail, created_at)
			VALUES (?,?,?,?,?,?)`,
			v.ID, v.Class, v.Check, boolToInt(v.Passed), v.Detail, v.CreatedAt.UnixNano())
		return err
	})
}

// RecentVerificationRuns returns the last limit verification runs, newest
// first. The quality gate blends these into a weighted score.
func (s *Store) RecentVerificationRuns(ctx context.Context, limit int) ([]coreapi.VerificationRun, error) {
	var out []coreapi.VerificationRun
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, class, check_text, passed, detail, created_at
			FROM verification_runs ORDER BY created_at DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v coreapi.VerificationRun
			var passed int
			var createdAt int64
			if err := rows.Scan(&v.ID, &v.Class, &v.Check, &passed, &v.Detail, &createdAt); err != nil {
				return err
			}
			v.Passed = passed != 0
			v.CreatedAt = time.Unix(0, createdAt)
			out = append(out, v)
		}
		return rows.Err()
	})
	return out, err
}

// InsertQualityScore records one computed quality score.
func (s *Store) InsertQualityScore(ctx context.Context, q coreapi.QualityScore) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO quality_scores (id, score, basis, created_at) VALUES (?,?,?,?)`,
			q.ID, q.Score, q.Basis, q.CreatedAt.UnixNano())
		return err
	})
}

// LatestQualityScore returns the most recently computed score, if any.
func (s *Store) LatestQualityScore(ctx context.Context) (coreapi.QualityScore, bool, error) {
	var q coreapi.QualityScore
	var found bool
	err := s.withLock(func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, score, basis, created_at FROM quality_scores ORDER BY created_at DESC LIMIT 1`)
		var createdAt int64
		err := row.Scan(&q.ID, &q.Score, &q.Basis, &createdAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		q.CreatedAt = time.Unix(0, createdAt)
		found = true
		return nil
	})
	return q, found, err
}

// SetReleaseBaseline replaces the single persisted baseline row.
func (s *Store) SetReleaseBaseline(ctx context.Context, b coreapi.ReleaseBaseline) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO release_baseline (id, baseline_json, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET baseline_json = excluded.baseline_json, updated_at = excluded.updated_at`,
			b.BaselineJSON, b.UpdatedAt.UnixNano())
		return err
	})
}

// GetReleaseBaseline fetches the single persisted baseline, if set.
func (s *Store) GetReleaseBaseline(ctx context.Context) (coreapi.ReleaseBaseline, bool, error) {
	var b coreapi.ReleaseBaseline
	var found bool
	err := s.withLock(func() error {
		row := s.db.QueryRowContext(ctx, `SELECT baseline_json, updated_at FROM release_baseline WHERE id = 1`)
		var updatedAt int64
		err := row.Scan(&b.BaselineJSON, &updatedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		b.UpdatedAt = time.Unix(0, updatedAt)
		found = true
		return nil
	})
	return b, found, err
}

// SetJudgmentState replaces the single persisted judgment-state blob (row id
// 1 of judgment_states).
func (s *Store) SetJudgmentState(ctx context.Context, stateJSON string, updatedAt time.Time) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO judgment_states (id, state_json, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
			stateJSON, updatedAt.UnixNano())
		return err
	})
}

// GetJudgmentState fetches the single persisted judgment-state blob.
func (s *Store) GetJudgmentState(ctx context.Context) (string, bool, error) {
	var stateJSON string
	var found bool
	err := s.withLock(func() error {
		row := s.db.QueryRowContext(ctx, `SELECT state_json FROM judgment_states WHERE id = 1`)
		err := row.Scan(&stateJSON)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return stateJSON, found, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
