// Package directory reads the org-management and identity rows the engine
// consumes but does not own: scheduled classes and student profiles.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"geoattend/internal/attendance"
	"geoattend/internal/clock"
)

// Repository reads scheduled classes and student profiles from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ScheduledClass loads a class definition. Days are stored as a
// comma-joined list of the 3-letter vocabulary; times as "HH:MM".
func (r *Repository) ScheduledClass(ctx context.Context, id string) (attendance.ScheduledClass, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, teacher_id, department_id, semester, COALESCE(section, ''), days, start_time, end_time, active
		FROM scheduled_classes WHERE id = $1
	`, id)

	var c attendance.ScheduledClass
	var days, startTime, endTime string
	err := row.Scan(&c.ID, &c.SubjectID, &c.TeacherID, &c.DepartmentID, &c.Semester, &c.Section, &days, &startTime, &endTime, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.ScheduledClass{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.ScheduledClass{}, err
	}

	for _, d := range strings.Split(days, ",") {
		day, err := clock.ParseWeekday(strings.TrimSpace(d))
		if err != nil {
			return attendance.ScheduledClass{}, fmt.Errorf("class %s: %w", c.ID, err)
		}
		c.Days = append(c.Days, day)
	}
	if c.StartMinute, err = clock.ParseHHMM(startTime); err != nil {
		return attendance.ScheduledClass{}, fmt.Errorf("class %s start: %w", c.ID, err)
	}
	if c.EndMinute, err = clock.ParseHHMM(endTime); err != nil {
		return attendance.ScheduledClass{}, fmt.Errorf("class %s end: %w", c.ID, err)
	}
	return c, nil
}

// StudentProfile loads a student's audience fields and bound device.
func (r *Repository) StudentProfile(ctx context.Context, id string) (attendance.StudentProfile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, department_id, COALESCE(semester, 0), COALESCE(section, ''), device_id
		FROM students WHERE id = $1
	`, id)

	var p attendance.StudentProfile
	err := row.Scan(&p.ID, &p.Name, &p.DepartmentID, &p.Semester, &p.Section, &p.DeviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.StudentProfile{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.StudentProfile{}, err
	}
	return p, nil
}
