// Package storage is the single embedded relational store every other
// package reads and writes through. It is a process-wide singleton guarded
// by one mutex (§3 Ownership, §5 Shared-resource policy), backed by
// modernc.org/sqlite so the binary stays cgo-free.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"surf-core/internal/logging"
)

// Store wraps the single sqlite connection used by the whole Core. Every
// exported method takes the mutex for its duration; none holds it across a
// suspension point it doesn't itself own.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logging.Logger
}

// Open opens (creating if absent) the sqlite file at path, applies pragmas
// for a single-writer-many-readers workload, and ensures the schema exists.
func Open(path string, logger logging.Logger) (*Store, error) {
	logger = logging.OrNop(logger)

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers; we also hold our own mutex.

	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withLock runs fn holding the store's mutex, recovering from any panic so a
// bug in one caller never permanently locks out the rest of the process
// (§5: "recovers from a poisoned mutex rather than aborting").
func (s *Store) withLock(fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("storage: recovered panic: %v", r)
			err = fmt.Errorf("storage: internal error: %v", r)
		}
	}()
	return fn()
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	ts INTEGER NOT NULL,
	source TEXT NOT NULL,
	app TEXT,
	event_type TEXT NOT NULL,
	priority INTEGER NOT NULL,
	resource_type TEXT,
	resource_id TEXT,
	payload_json TEXT,
	privacy_json TEXT,
	window_title TEXT,
	browser_url TEXT,
	pid INTEGER
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	start_ts INTEGER NOT NULL,
	end_ts INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	summary_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	title TEXT NOT NULL,
	summary TEXT,
	trigger_text TEXT NOT NULL,
	actions_json TEXT,
	n8n_prompt TEXT,
	fingerprint TEXT NOT NULL UNIQUE,
	confidence REAL NOT NULL,
	evidence_json TEXT,
	pattern_id TEXT,
	workflow_id TEXT,
	workflow_json TEXT,
	last_error TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_history (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS routines (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	definition_json TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS routine_runs (
	id TEXT PRIMARY KEY,
	routine_id TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER
);

CREATE TABLE IF NOT EXISTS exec_approvals (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	cwd TEXT,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	status TEXT NOT NULL,
	decision TEXT,
	resolved_at INTEGER
);

CREATE TABLE IF NOT EXISTS exec_allowlist (
	id TEXT PRIMARY KEY,
	pattern TEXT NOT NULL,
	cwd TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exec_results (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	cwd TEXT,
	status TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	stdout TEXT,
	stderr TEXT,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS verification_runs (
	id TEXT PRIMARY KEY,
	class TEXT NOT NULL,
	check_text TEXT NOT NULL,
	passed INTEGER NOT NULL,
	detail TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quality_scores (
	id TEXT PRIMARY KEY,
	score REAL NOT NULL,
	basis TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS nl_runs (
	id TEXT PRIMARY KEY,
	goal TEXT NOT NULL,
	status TEXT NOT NULL,
	steps INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS release_baseline (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	baseline_json TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS judgment_states (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	state_json TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS routine_candidates (
	id TEXT PRIMARY KEY,
	pattern_id TEXT NOT NULL,
	proposal_id TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	step_index INTEGER NOT NULL,
	action_type TEXT NOT NULL,
	inputs_json TEXT,
	result_status TEXT NOT NULL,
	observations TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_steps_created ON agent_steps(created_at);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
