package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// EventKind classifies a journal event.
type EventKind string

const (
	// EventAction is recorded when the resolved action changes.
	EventAction EventKind = "action"
	// EventStopConfirmed is recorded when a STOP dwell completes.
	EventStopConfirmed EventKind = "stop_confirmed"
	// EventCalibration is recorded for every focal length command.
	EventCalibration EventKind = "calibration"
	// EventSnapshot is recorded when the processing steps image is saved.
	EventSnapshot EventKind = "snapshot"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventAction, EventStopConfirmed, EventCalibration, EventSnapshot:
		return true
	}
	return false
}

// DefaultListLimit and MaxListLimit bound event and session listings.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Event is one journal entry. MarkerID and DistanceCm are nil for events
// not tied to a marker.
type Event struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Kind       EventKind `json:"kind"`
	MarkerID   *int      `json:"marker_id,omitempty"`
	Action     string    `json:"action,omitempty"`
	DistanceCm *float64  `json:"distance_cm,omitempty"`
	Focal      int       `json:"focal"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventFilter narrows an event listing. Zero fields match everything.
type EventFilter struct {
	SessionID string
	Kind      EventKind
	Limit     int
}

// EventRepository provides access to journal events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts an event and sets its ID. CreatedAt defaults to now.
func (r *EventRepository) Create(e *Event) error {
	if !e.Kind.Valid() {
		return errors.Newf("unknown event kind %q", e.Kind)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(
		`INSERT INTO events (session_id, kind, marker_id, action, distance_cm, focal, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, string(e.Kind), e.MarkerID, e.Action, e.DistanceCm, e.Focal, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert %s event", e.Kind)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// List returns matching events, newest first.
func (r *EventRepository) List(f EventFilter) ([]*Event, error) {
	var where []string
	var args []any
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}

	query := `SELECT id, session_id, kind, marker_id, action, distance_cm, focal, detail, created_at FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, normalizeLimit(f.Limit))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var kind string
		var markerID sql.NullInt64
		var distance sql.NullFloat64

		err := rows.Scan(&e.ID, &e.SessionID, &kind, &markerID, &e.Action, &distance, &e.Focal, &e.Detail, &e.CreatedAt)
		if err != nil {
			return nil, err
		}

		e.Kind = EventKind(kind)
		if markerID.Valid {
			id := int(markerID.Int64)
			e.MarkerID = &id
		}
		if distance.Valid {
			d := distance.Float64
			e.DistanceCm = &d
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Count returns the number of events of a kind in a session.
func (r *EventRepository) Count(sessionID string, kind EventKind) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE session_id = ? AND kind = ?`,
		sessionID, string(kind),
	).Scan(&n)
	return n, err
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
