package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema bootstraps the tables the engine owns (sessions, attendance_marks)
// and the read models it consumes (scheduled_classes, students). The two
// uniqueness invariants live here, not in application code: one active
// session per class, one mark per (student, session).
const Schema = `
CREATE TABLE IF NOT EXISTS scheduled_classes (
    id TEXT PRIMARY KEY,
    subject_id TEXT NOT NULL,
    teacher_id TEXT NOT NULL,
    department_id TEXT NOT NULL,
    semester INT NOT NULL,
    section TEXT,
    days TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    department_id TEXT NOT NULL,
    semester INT,
    section TEXT,
    device_id TEXT NOT NULL,
    current_session_id TEXT
);

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    scheduled_class_id TEXT NOT NULL REFERENCES scheduled_classes(id),
    anchor_lat DOUBLE PRECISION NOT NULL,
    anchor_lon DOUBLE PRECISION NOT NULL,
    radius_m DOUBLE PRECISION NOT NULL,
    starts_at TIMESTAMPTZ NOT NULL,
    ends_at TIMESTAMPTZ NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    locked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active_per_class
    ON sessions (scheduled_class_id) WHERE active;

CREATE TABLE IF NOT EXISTS attendance_marks (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    student_id TEXT NOT NULL REFERENCES students(id),
    device_id TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    marked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    status TEXT NOT NULL DEFAULT 'present',
    UNIQUE (student_id, session_id)
);

CREATE INDEX IF NOT EXISTS attendance_marks_session
    ON attendance_marks (session_id, marked_at);
`

// EnsureSchema applies the schema at startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
