package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists sessions and marks in Postgres. The schema carries the
// two uniqueness guards the engine relies on: a partial unique index on
// sessions(scheduled_class_id) WHERE active, and UNIQUE(student_id,
// session_id) on attendance_marks.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, scheduled_class_id, anchor_lat, anchor_lon, radius_m, starts_at, ends_at, active, locked, created_at`

// Session returns a session by id.
func (r *Repository) Session(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions WHERE id = $1
	`, id)
	return scanSession(row)
}

// OpenSession supersedes any active session for the class and inserts the
// new one in a single transaction. The partial unique index backstops a race
// between two concurrent opens; losing that race yields CONCURRENCY_CONFLICT.
func (r *Repository) OpenSession(ctx context.Context, s Session) (Session, int, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET active = FALSE, locked = TRUE
		WHERE scheduled_class_id = $1 AND active
	`, s.ScheduledClassID)
	if err != nil {
		return Session{}, 0, err
	}
	superseded, _ := res.RowsAffected()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO sessions (id, scheduled_class_id, anchor_lat, anchor_lon, radius_m, starts_at, ends_at, active, locked)
		VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE,FALSE)
		RETURNING created_at
	`, s.ID, s.ScheduledClassID, s.AnchorLat, s.AnchorLon, s.RadiusM, s.StartsAt, s.EndsAt)
	if err := row.Scan(&s.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Session{}, 0, ErrConcurrencyConflict("another session was opened for this class, try again")
		}
		return Session{}, 0, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return Session{}, 0, ErrConcurrencyConflict("another session was opened for this class, try again")
		}
		return Session{}, 0, err
	}
	s.Active = true
	s.Locked = false
	return s, int(superseded), nil
}

// CloseSession deactivates and locks a session. Already-closed sessions are
// left as they are.
func (r *Repository) CloseSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET active = FALSE, locked = TRUE WHERE id = $1
	`, id)
	return err
}

// LiveSessions returns candidate live sessions; callers still apply IsLive.
func (r *Repository) LiveSessions(ctx context.Context, now time.Time) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE active AND NOT locked AND ends_at >= $1
		ORDER BY starts_at DESC
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// HasMark reports whether the student already marked the session.
func (r *Repository) HasMark(ctx context.Context, studentID, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_marks WHERE student_id = $1 AND session_id = $2
		)
	`, studentID, sessionID).Scan(&exists)
	return exists, err
}

// InsertMark writes the mark. ON CONFLICT DO NOTHING plus the unique
// constraint catch the double-tap race the pre-check cannot.
func (r *Repository) InsertMark(ctx context.Context, m Mark) (Mark, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = StatusPresent
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_marks (id, session_id, student_id, device_id, lat, lon, marked_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (student_id, session_id) DO NOTHING
		RETURNING marked_at
	`, m.ID, m.SessionID, m.StudentID, m.DeviceID, m.Lat, m.Lon, m.MarkedAt, m.Status)
	if err := row.Scan(&m.MarkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Mark{}, ErrConcurrencyConflict("attendance already marked for this session")
		}
		return Mark{}, err
	}
	return m, nil
}

// SessionRoster lists marks for a session joined with student names,
// earliest arrival first.
func (r *Repository) SessionRoster(ctx context.Context, sessionID string) ([]RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.student_id, s.name, m.marked_at
		FROM attendance_marks m
		JOIN students s ON s.id = m.student_id
		WHERE m.session_id = $1
		ORDER BY m.marked_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.StudentID, &e.Name, &e.MarkedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Mark returns a single mark by id. Used by the worker.
func (r *Repository) Mark(ctx context.Context, id string) (Mark, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, device_id, lat, lon, marked_at, status
		FROM attendance_marks WHERE id = $1
	`, id)
	var m Mark
	if err := row.Scan(&m.ID, &m.SessionID, &m.StudentID, &m.DeviceID, &m.Lat, &m.Lon, &m.MarkedAt, &m.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Mark{}, ErrNotFound
		}
		return Mark{}, err
	}
	return m, nil
}

// SetCurrentSession refreshes the denormalized pointer on the student row.
// Convenience cache only; nothing in the engine reads it back.
func (r *Repository) SetCurrentSession(ctx context.Context, studentID, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE students SET current_session_id = $2 WHERE id = $1
	`, studentID, sessionID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.ScheduledClassID, &s.AnchorLat, &s.AnchorLon, &s.RadiusM,
		&s.StartsAt, &s.EndsAt, &s.Active, &s.Locked, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
