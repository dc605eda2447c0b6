package storage

import (
	"context"
	"database/sql"
	"time"

	"surf-core/internal/coreapi"
)

// InsertExecApproval persists a new pending shell-command approval request.
func (s *Store) InsertExecApproval(ctx context.Context, a coreapi.ExecApproval) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO exec_approvals (id, command, cwd, created_at, expires_at, status, decision, resolved_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			a.ID, a.Command, a.Cwd, a.CreatedAt.UnixNano(), a.ExpiresAt.UnixNano(), string(a.Status), string(a.Decision), nullTime(a.ResolvedAt))
		return err
	})
}

// ResolveExecApproval records the operator's decision on a pending approval.
func (s *Store) ResolveExecApproval(ctx context.Context, id string, decision coreapi.ExecDecision, resolvedAt time.Time) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE exec_approvals SET status = ?, decision = ?, resolved_at = ? WHERE id = ?`,
			string(coreapi.ExecApprovalResolved), string(decision), resolvedAt.UnixNano(), id)
		return err
	})
}

// ExpireExecApproval marks a pending approval expired once its TTL elapses.
func (s *Store) ExpireExecApproval(ctx context.Context, id string) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE exec_approvals SET status = ? WHERE id = ?`,
			string(coreapi.ExecApprovalExpired), id)
		return err
	})
}

// GetExecApproval fetches one approval by id.
func (s *Store) GetExecApproval(ctx context.Context, id string) (coreapi.ExecApproval, bool, error) {
	var a coreapi.ExecApproval
	var found bool
	err := s.withLock(func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, command, cwd, created_at, expires_at, status, decision, resolved_at
			FROM exec_approvals WHERE id = ?`, id)
		parsed, err := scanExecApproval(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		a, found = parsed, true
		return nil
	})
	return a, found, err
}

// PendingExecApprovals lists every approval still awaiting resolution.
func (s *Store) PendingExecApprovals(ctx context.Context) ([]coreapi.ExecApproval, error) {
	var out []coreapi.ExecApproval
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, command, cwd, created_at, expires_at, status, decision, resolved_at
			FROM exec_approvals WHERE status = ? ORDER BY created_at ASC`, string(coreapi.ExecApprovalPending))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanExecApproval(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}

func scanExecApproval(row rowScanner) (coreapi.ExecApproval, error) {
	var a coreapi.ExecApproval
	var createdAt, expiresAt int64
	var status, decision string
	var resolvedAt sql.NullInt64
	if err := row.Scan(&a.ID, &a.Command, &a.Cwd, &createdAt, &expiresAt, &status, &decision, &resolvedAt); err != nil {
		return coreapi.ExecApproval{}, err
	}
	a.CreatedAt = time.Unix(0, createdAt)
	a.ExpiresAt = time.Unix(0, expiresAt)
	a.Status = coreapi.ExecApprovalStatus(status)
	a.Decision = coreapi.ExecDecision(decision)
	if resolvedAt.Valid {
		t := time.Unix(0, resolvedAt.Int64)
		a.ResolvedAt = &t
	}
	return a, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

// InsertAllowlistEntry adds a pattern that bypasses per-execution approval.
func (s *Store) InsertAllowlistEntry(ctx context.Context, e coreapi.ExecAllowlistEntry) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO exec_allowlist (id, pattern, cwd, created_at) VALUES (?,?,?,?)`,
			e.ID, e.Pattern, e.Cwd, e.CreatedAt.UnixNano())
		return err
	})
}

// RemoveAllowlistEntry deletes an allowlist entry by id.
func (s *Store) RemoveAllowlistEntry(ctx context.Context, id string) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM exec_allowlist WHERE id = ?`, id)
		return err
	})
}

// ListAllowlist returns every allowlist entry, for the policy gate's
// exact -> prefix* -> regex matching pass.
func (s *Store) ListAllowlist(ctx context.Context) ([]coreapi.ExecAllowlistEntry, error) {
	var out []coreapi.ExecAllowlistEntry
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT id, pattern, cwd, created_at FROM exec_allowlist ORDER BY created_at ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e coreapi.ExecAllowlistEntry
			var createdAt int64
			if err := rows.Scan(&e.ID, &e.Pattern, &e.Cwd, &createdAt); err != nil {
				return err
			}
			e.CreatedAt = time.Unix(0, createdAt)
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// InsertExecResult persists a completed shell Action's outcome.
func (s *Store) InsertExecResult(ctx context.Context, r coreapi.ExecResult) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO exec_results (id, command, cwd, status, exit_code, stdout, stderr, started_at, finished_at)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			r.ID, r.Command, r.Cwd, r.Status, r.ExitCode, r.Stdout, r.Stderr, r.StartedAt.UnixNano(), r.FinishedAt.UnixNano())
		return err
	})
}

// RecentExecResults returns the last limit shell execution outcomes.
func (s *Store) RecentExecResults(ctx context.Context, limit int) ([]coreapi.ExecResult, error) {
	var out []coreapi.ExecResult
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, command, cwd, status, exit_code, stdout, stderr, started_at, finished_at
			FROM exec_results ORDER BY started_at DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r coreapi.ExecResult
			var startedAt, finishedAt int64
			if err := rows.Scan(&r.ID, &r.Command, &r.Cwd, &r.Status, &r.ExitCode, &r.Stdout, &r.Stderr, &startedAt, &finishedAt); err != nil {
				return err
			}
			r.StartedAt = time.Unix(0, startedAt)
			r.FinishedAt = time.Unix(0, finishedAt)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}
