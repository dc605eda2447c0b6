package storage

import (
	"context"
	"encoding/json"
	"time"

	"surf-core/internal/coreapi"
)

// InsertAgentStep appends one AgentStep to a goal run's history (§3).
func (s *Store) InsertAgentStep(ctx context.Context, step coreapi.AgentStep) error {
	return s.withLock(func() error {
		inputs, err := json.Marshal(step.Inputs)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO agent_steps (step_index, action_type, inputs_json, result_status, observations, created_at)
			VALUES (?,?,?,?,?,?)`,
			step.Index, step.ActionType, string(inputs), string(step.ResultStatus), step.Observations, step.At.UnixNano())
		return err
	})
}

// RecentAgentSteps returns the last limit AgentSteps, newest first.
func (s *Store) RecentAgentSteps(ctx context.Context, limit int) ([]coreapi.AgentStep, error) {
	var out []coreapi.AgentStep
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT step_index, action_type, inputs_json, result_status, observations, created_at
			FROM agent_steps ORDER BY created_at DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var step coreapi.AgentStep
			var inputsJSON, status string
			var createdNano int64
			if err := rows.Scan(&step.Index, &step.ActionType, &inputsJSON, &status, &step.Observations, &createdNano); err != nil {
				return err
			}
			step.ResultStatus = coreapi.StepResultStatus(status)
			step.At = time.Unix(0, createdNano)
			if inputsJSON != "" {
				_ = json.Unmarshal([]byte(inputsJSON), &step.Inputs)
			}
			out = append(out, step)
		}
		return rows.Err()
	})
	return out, err
}
