package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"surf-core/internal/coreapi"
)

// InsertRecommendation inserts an AutomationProposal. Per §8's uniqueness
// invariant, a fingerprint collision is a silent no-op rather than an error:
// the caller already checked ExistsByFingerprint where that distinction
// matters, this just protects the invariant at the storage boundary too.
func (s *Store) InsertRecommendation(ctx context.Context, p coreapi.AutomationProposal) error {
	return s.withLock(func() error {
		actions, err := json.Marshal(p.Actions)
		if err != nil {
			return err
		}
		evidence, err := json.Marshal(p.Evidence)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO recommendations
			(id, status, title, summary, trigger_text, actions_json, n8n_prompt, fingerprint, confidence, evidence_json, pattern_id, workflow_id, workflow_json, last_error, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			p.ID, string(p.Status), p.Title, p.Summary, p.Trigger, string(actions), p.N8NPrompt,
			p.Fingerprint(), p.Confidence, string(evidence), p.PatternID, p.WorkflowID, p.WorkflowJSON,
			p.LastError, p.CreatedAt.UnixNano())
		return err
	})
}

// ExistsByFingerprint reports whether a recommendation with this fingerprint
// is already stored, regardless of status (§8 dedupe invariant).
func (s *Store) ExistsByFingerprint(ctx context.Context, fp string) (bool, error) {
	var exists bool
	err := s.withLock(func() error {
		row := s.db.QueryRowContext(ctx, `SELECT 1 FROM recommendations WHERE fingerprint = ?`, fp)
		var x int
		scanErr := row.Scan(&x)
		if scanErr == sql.ErrNoRows {
			exists = false
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		exists = true
		return nil
	})
	return exists, err
}

// UpdateRecommendationStatus transitions a proposal's lifecycle status.
func (s *Store) UpdateRecommendationStatus(ctx context.Context, id string, status coreapi.ProposalStatus) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE recommendations SET status = ? WHERE id = ?`, string(status), id)
		return err
	})
}

// SetRecommendationWorkflow records the backend workflow identifier once an
// approved proposal has been materialized (§3 workflow_id is opaque per
// backend, stored verbatim).
func (s *Store) SetRecommendationWorkflow(ctx context.Context, id, workflowID, workflowJSON string) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE recommendations SET workflow_id = ?, workflow_json = ? WHERE id = ?`,
			workflowID, workflowJSON, id)
		return err
	})
}

// SetRecommendationError records the last execution error for a proposal.
func (s *Store) SetRecommendationError(ctx context.Context, id, lastErr string) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE recommendations SET last_error = ? WHERE id = ?`, lastErr, id)
		return err
	})
}

// RecommendationsByStatus lists proposals in a given status, newest first.
func (s *Store) RecommendationsByStatus(ctx context.Context, status coreapi.ProposalStatus) ([]coreapi.AutomationProposal, error) {
	var out []coreapi.AutomationProposal
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, status, title, summary, trigger_text, actions_json, n8n_prompt, confidence, evidence_json, pattern_id, workflow_id, workflow_json, last_error, created_at
			FROM recommendations WHERE status = ? ORDER BY created_at DESC`, string(status))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanRecommendation(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// GetRecommendation fetches one proposal by id.
func (s *Store) GetRecommendation(ctx context.Context, id string) (coreapi.AutomationProposal, bool, error) {
	var p coreapi.AutomationProposal
	var found bool
	err := s.withLock(func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, status, title, summary, trigger_text, actions_json, n8n_prompt, confidence, evidence_json, pattern_id, workflow_id, workflow_json, last_error, created_at
			FROM recommendations WHERE id = ?`, id)
		parsed, err := scanRecommendation(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		p, found = parsed, true
		return nil
	})
	return p, found, err
}

// LatestRecommendationForPattern returns the creation time of the most
// recent recommendation derived from patternID, used for the Pattern
// Engine's cooldown check (§4.7 step 1).
func (s *Store) LatestRecommendationForPattern(ctx context.Context, patternID string) (time.Time, bool, error) {
	var ts time.Time
	var found bool
	err := s.withLock(func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT created_at FROM recommendations WHERE pattern_id = ? ORDER BY created_at DESC LIMIT 1`, patternID)
		var createdAt int64
		scanErr := row.Scan(&createdAt)
		if scanErr == sql.ErrNoRows {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		ts, found = time.Unix(0, createdAt), true
		return nil
	})
	return ts, found, err
}

// CountRecommendationsSince counts recommendations created at or after
// since, used for the Pattern Engine's daily budget check (§4.7 step 2).
func (s *Store) CountRecommendationsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.withLock(func() error {
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recommendations WHERE created_at >= ?`, since.UnixNano())
		return row.Scan(&n)
	})
	return n, err
}

func scanRecommendation(row rowScanner) (coreapi.AutomationProposal, error) {
	var p coreapi.AutomationProposal
	var status, actionsJSON, evidenceJSON string
	var createdAt int64
	if err := row.Scan(&p.ID, &status, &p.Title, &p.Summary, &p.Trigger, &actionsJSON, &p.N8NPrompt,
		&p.Confidence, &evidenceJSON, &p.PatternID, &p.WorkflowID, &p.WorkflowJSON, &p.LastError, &createdAt); err != nil {
		return coreapi.AutomationProposal{}, err
	}
	p.Status = coreapi.ProposalStatus(status)
	p.CreatedAt = time.Unix(0, createdAt)
	if actionsJSON != "" {
		_ = json.Unmarshal([]byte(actionsJSON), &p.Actions)
	}
	if evidenceJSON != "" {
		_ = json.Unmarshal([]byte(evidenceJSON), &p.Evidence)
	}
	return p, nil
}
