package storage

import (
	"context"
	"encoding/json"
	"time"

	"surf-core/internal/coreapi"
)

// InsertEvent persists one Event as-is; the Event Pipeline has already run
// the privacy mask before this is called.
func (s *Store) InsertEvent(ctx context.Context, e coreapi.Event) error {
	return s.withLock(func() error {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return err
		}
		var privacy []byte
		if e.Privacy != nil {
			privacy, err = json.Marshal(e.Privacy)
			if err != nil {
				return err
			}
		}
		var resType, resID string
		if e.Resource != nil {
			resType, resID = e.Resource.Type, e.Resource.ID
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO events
			(event_id, ts, source, app, event_type, priority, resource_type, resource_id, payload_json, privacy_json, window_title, browser_url, pid)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			e.EventID, e.TS.UnixNano(), string(e.Source), e.App, e.EventType, int(e.Priority),
			resType, resID, string(payload), string(privacy), e.WindowTitle, e.BrowserURL, e.PID)
		return err
	})
}

// EventsBetween returns events with ts in [from, to), ordered oldest first.
// Used by the sessionizer and pattern detectors.
func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]coreapi.Event, error) {
	var out []coreapi.Event
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT event_id, ts, source, app, event_type, priority, resource_type, resource_id, payload_json, privacy_json, window_title, browser_url, pid
			FROM events WHERE ts >= ? AND ts < ? ORDER BY ts ASC`,
			from.UnixNano(), to.UnixNano())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// RecentEvents returns the last limit events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]coreapi.Event, error) {
	var out []coreapi.Event
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT event_id, ts, source, app, event_type, priority, resource_type, resource_id, payload_json, privacy_json, window_title, browser_url, pid
			FROM events ORDER BY ts DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(rows rowScanner) (coreapi.Event, error) {
	var e coreapi.Event
	var tsNano int64
	var source, resType, resID, payloadJSON, privacyJSON string
	var priority int
	if err := rows.Scan(&e.EventID, &tsNano, &source, &e.App, &e.EventType, &priority,
		&resType, &resID, &payloadJSON, &privacyJSON, &e.WindowTitle, &e.BrowserURL, &e.PID); err != nil {
		return coreapi.Event{}, err
	}
	e.TS = time.Unix(0, tsNano)
	e.Source = coreapi.EventSource(source)
	e.Priority = coreapi.Priority(priority)
	if resType != "" {
		e.Resource = &coreapi.Resource{Type: resType, ID: resID}
	}
	if payloadJSON != "" {
		_ = json.Unmarshal([]byte(payloadJSON), &e.Payload)
	}
	if privacyJSON != "" {
		var p coreapi.PrivacyAnnotations
		if err := json.Unmarshal([]byte(privacyJSON), &p); err == nil {
			e.Privacy = &p
		}
	}
	return e, nil
}

// InsertSession persists one sessionized summary.
func (s *Store) InsertSession(ctx context.Context, sess coreapi.Session) error {
	return s.withLock(func() error {
		summary, err := json.Marshal(sess.Summary)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO sessions (session_id, start_ts, end_ts, duration_ms, summary_json)
			VALUES (?,?,?,?,?)`,
			sess.SessionID, sess.StartTS.UnixNano(), sess.EndTS.UnixNano(), sess.Duration.Milliseconds(), string(summary))
		return err
	})
}

// RecentSessions returns the last limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]coreapi.Session, error) {
	var out []coreapi.Session
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT session_id, start_ts, end_ts, duration_ms, summary_json
			FROM sessions ORDER BY start_ts DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sess coreapi.Session
			var startNano, endNano, durMS int64
			var summaryJSON string
			if err := rows.Scan(&sess.SessionID, &startNano, &endNano, &durMS, &summaryJSON); err != nil {
				return err
			}
			sess.StartTS = time.Unix(0, startNano)
			sess.EndTS = time.Unix(0, endNano)
			sess.Duration = time.Duration(durMS) * time.Millisecond
			_ = json.Unmarshal([]byte(summaryJSON), &sess.Summary)
			out = append(out, sess)
		}
		return rows.Err()
	})
	return out, err
}
