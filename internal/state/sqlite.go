// Package state persists wizard sessions between invocations so a user
// can quit mid-edit and pick the draft back up later.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/semcraft/internal/model"
	"github.com/leapstack-labs/semcraft/internal/workflow"
)

// SessionRecord is the persisted shape of a wizard session.
type SessionRecord struct {
	ID        string
	DraftYAML string
	Database  string
	Schema    string
	Stage     string
	Validated bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session rebuilds the in-memory workflow session from the record.
func (r *SessionRecord) Session() (*workflow.Session, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse session id %q: %w", r.ID, err)
	}

	var draft *model.Draft
	if r.DraftYAML != "" {
		draft, err = model.FromYAML(r.DraftYAML)
		if err != nil {
			return nil, fmt.Errorf("restore draft for session %s: %w", r.ID, err)
		}
	}

	var dest *workflow.Destination
	if r.Database != "" || r.Schema != "" || r.Stage != "" {
		dest = &workflow.Destination{Database: r.Database, Schema: r.Schema, Stage: r.Stage}
	}

	return workflow.Restore(id.String(), draft, dest, r.Validated), nil
}

// Record captures the session's persistable state.
func Record(sess *workflow.Session) (*SessionRecord, error) {
	rec := &SessionRecord{ID: sess.ID()}

	if draft := sess.Draft(); draft != nil {
		text, err := model.ToYAML(draft)
		if err != nil {
			return nil, fmt.Errorf("serialize draft for session %s: %w", rec.ID, err)
		}
		rec.DraftYAML = text
	}

	if dest := sess.Destination(); dest != nil {
		rec.Database = dest.Database
		rec.Schema = dest.Schema
		rec.Stage = dest.Stage
	}

	rec.Validated = sess.Validated()
	return rec, nil
}

// SQLiteStore stores session records in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a session store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens the SQLite database, creating parent directories as
// needed. Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create state directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping session database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSession inserts or updates a session record.
func (s *SQLiteStore) SaveSession(rec *SessionRecord) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	rec.UpdatedAt = now

	existing, err := s.GetSession(rec.ID)
	if err != nil {
		return fmt.Errorf("check existing session: %w", err)
	}

	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
		_, err := s.db.Exec(
			`UPDATE sessions SET draft_yaml = ?, dest_database = ?, dest_schema = ?, dest_stage = ?, validated = ?, updated_at = ? WHERE id = ?`,
			rec.DraftYAML, rec.Database, rec.Schema, rec.Stage, rec.Validated, rec.UpdatedAt, rec.ID,
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = now

	_, err = s.db.Exec(
		`INSERT INTO sessions (id, draft_yaml, dest_database, dest_schema, dest_stage, validated, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DraftYAML, rec.Database, rec.Schema, rec.Stage, rec.Validated, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns nil when not found.
func (s *SQLiteStore) GetSession(id string) (*SessionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rec := &SessionRecord{}
	err := s.db.QueryRow(
		`SELECT id, draft_yaml, dest_database, dest_schema, dest_stage, validated, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.DraftYAML, &rec.Database, &rec.Schema, &rec.Stage, &rec.Validated, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

// LatestSession retrieves the most recently updated session, or nil
// when the store is empty.
func (s *SQLiteStore) LatestSession() (*SessionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rec := &SessionRecord{}
	err := s.db.QueryRow(
		`SELECT id, draft_yaml, dest_database, dest_schema, dest_stage, validated, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&rec.ID, &rec.DraftYAML, &rec.Database, &rec.Schema, &rec.Stage, &rec.Validated, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest session: %w", err)
	}
	return rec, nil
}

// ListSessions retrieves all sessions, newest first.
func (s *SQLiteStore) ListSessions() ([]*SessionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, draft_yaml, dest_database, dest_schema, dest_stage, validated, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var recs []*SessionRecord
	for rows.Next() {
		rec := &SessionRecord{}
		err := rows.Scan(&rec.ID, &rec.DraftYAML, &rec.Database, &rec.Schema, &rec.Stage, &rec.Validated, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteSession removes a session by ID.
func (s *SQLiteStore) DeleteSession(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}
