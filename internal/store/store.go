// Package store persists sessions, prompts, observations, and summaries in
// a local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is one tracked Claude session.
type Session struct {
	ID           int64
	SessionID    string
	Project      string
	CWD          string
	Status       string
	PromptCount  int
	Observations int
	StartedAt    string
	EndedAt      string
}

// Store wraps the SQLite database. All methods are safe for concurrent use;
// database/sql serializes access to the single connection pool.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CreateSession registers a session, reusing the existing row when the
// session is already known. It reports whether a new row was created.
func (s *Store) CreateSession(sessionID, project, cwd string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM sessions WHERE claude_session_id = ?", sessionID).Scan(&id)
	if err == nil {
		// Re-registration reactivates a session the host resumed.
		_, err = s.db.Exec(
			"UPDATE sessions SET status = ?, cwd = ?, ended_at = NULL WHERE id = ?",
			"active", cwd, id)
		return id, false, err
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}

	res, err := s.db.Exec(
		"INSERT INTO sessions (claude_session_id, project, cwd, status, started_at) VALUES (?, ?, ?, ?, ?)",
		sessionID, project, cwd, "active", now())
	if err != nil {
		return 0, false, err
	}
	id, err = res.LastInsertId()
	return id, true, err
}

// SavePrompt stores a prompt and returns its 1-based number within the
// session.
func (s *Store) SavePrompt(sessionID, prompt string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE sessions SET prompt_count = prompt_count + 1 WHERE claude_session_id = ?",
		sessionID); err != nil {
		return 0, err
	}

	var number int
	if err := tx.QueryRow(
		"SELECT prompt_count FROM sessions WHERE claude_session_id = ?",
		sessionID).Scan(&number); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(
		"INSERT INTO prompts (claude_session_id, prompt_number, prompt_text, created_at) VALUES (?, ?, ?, ?)",
		sessionID, number, prompt, now()); err != nil {
		return 0, err
	}

	return number, tx.Commit()
}

// SaveObservation stores one tool observation and returns its row ID plus
// the count of observations not yet folded into a summary.
func (s *Store) SaveObservation(sessionID, toolName string, toolInput, toolResponse []byte, cwd string) (int64, int, error) {
	res, err := s.db.Exec(
		"INSERT INTO observations (claude_session_id, tool_name, tool_input, tool_response, cwd, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		sessionID, toolName, string(toolInput), string(toolResponse), cwd, now())
	if err != nil {
		return 0, 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, 0, err
	}
	pending, err := s.PendingObservations(sessionID)
	return id, pending, err
}

// PendingObservations counts observations not yet summarized.
func (s *Store) PendingObservations(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM observations WHERE claude_session_id = ? AND summarized = 0",
		sessionID).Scan(&n)
	return n, err
}

// MarkPreparing flags a session ahead of context compaction and returns the
// pending observation count.
func (s *Store) MarkPreparing(sessionID string) (int, error) {
	if _, err := s.db.Exec(
		"UPDATE sessions SET status = ? WHERE claude_session_id = ?",
		"preparing", sessionID); err != nil {
		return 0, err
	}
	return s.PendingObservations(sessionID)
}

// Compress folds the session's pending observations into one summary row
// and marks the session completed. It returns the summary row ID and the
// number of observations folded.
func (s *Store) Compress(sessionID, summary string) (int64, int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	var pending int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM observations WHERE claude_session_id = ? AND summarized = 0",
		sessionID).Scan(&pending); err != nil {
		return 0, 0, err
	}

	res, err := tx.Exec(
		"INSERT INTO summaries (claude_session_id, summary, observation_count, created_at) VALUES (?, ?, ?, ?)",
		sessionID, summary, pending, now())
	if err != nil {
		return 0, 0, err
	}
	summaryID, err := res.LastInsertId()
	if err != nil {
		return 0, 0, err
	}

	if _, err := tx.Exec(
		"UPDATE observations SET summarized = 1 WHERE claude_session_id = ? AND summarized = 0",
		sessionID); err != nil {
		return 0, 0, err
	}
	if _, err := tx.Exec(
		"UPDATE sessions SET status = ?, ended_at = ? WHERE claude_session_id = ?",
		"completed", now(), sessionID); err != nil {
		return 0, 0, err
	}

	return summaryID, pending, tx.Commit()
}

// CountActiveSessions counts sessions currently in the active state.
func (s *Store) CountActiveSessions() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE status = 'active'").Scan(&n)
	return n, err
}

// RecentSessions returns the most recently started sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT s.id, s.claude_session_id, COALESCE(s.project, ''), COALESCE(s.cwd, ''),
		       s.status, s.prompt_count,
		       (SELECT COUNT(*) FROM observations o WHERE o.claude_session_id = s.claude_session_id),
		       s.started_at, COALESCE(s.ended_at, '')
		FROM sessions s
		ORDER BY s.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.SessionID, &sess.Project, &sess.CWD,
			&sess.Status, &sess.PromptCount, &sess.Observations,
			&sess.StartedAt, &sess.EndedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// GetSession looks up one session by its Claude session ID.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(`
		SELECT id, claude_session_id, COALESCE(project, ''), COALESCE(cwd, ''),
		       status, prompt_count, started_at, COALESCE(ended_at, '')
		FROM sessions WHERE claude_session_id = ?`, sessionID).
		Scan(&sess.ID, &sess.SessionID, &sess.Project, &sess.CWD,
			&sess.Status, &sess.PromptCount, &sess.StartedAt, &sess.EndedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
