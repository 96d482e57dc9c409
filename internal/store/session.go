package store

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Session is one run of the perception loop.
type Session struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	FocalStart int        `json:"focal_start"`
	FocalEnd   *int       `json:"focal_end,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// SessionRepository provides access to sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start records a new session for the given frame source and initial focal
// length.
func (r *SessionRepository) Start(source string, focal int) (*Session, error) {
	sess := &Session{
		ID:         uuid.NewString(),
		Source:     source,
		FocalStart: focal,
		StartedAt:  time.Now().UTC(),
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, focal_start, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Source, sess.FocalStart, sess.StartedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert session")
	}
	return sess, nil
}

// End closes a session with the focal length in effect when it stopped.
func (r *SessionRepository) End(id string, focal int) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET focal_end = ?, ended_at = ? WHERE id = ?`,
		focal, time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "end session")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, source, focal_start, focal_end, started_at, ended_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns the most recent sessions first.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, source, focal_start, focal_end, started_at, ended_at
		 FROM sessions ORDER BY started_at DESC LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var focalEnd sql.NullInt64
	var endedAt sql.NullTime

	if err := row.Scan(&sess.ID, &sess.Source, &sess.FocalStart, &focalEnd, &sess.StartedAt, &endedAt); err != nil {
		return nil, err
	}

	if focalEnd.Valid {
		f := int(focalEnd.Int64)
		sess.FocalEnd = &f
	}
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	return sess, nil
}
