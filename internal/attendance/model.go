package attendance

import (
	"time"

	"geoattend/internal/clock"
)

// ScheduledClass is the recurring class definition owned by org management.
// The engine only reads it.
type ScheduledClass struct {
	ID           string          `json:"id"`
	SubjectID    string          `json:"subject_id"`
	TeacherID    string          `json:"teacher_id"`
	DepartmentID string          `json:"department_id"`
	Semester     int             `json:"semester"`
	Section      string          `json:"section,omitempty"`
	Days         []clock.Weekday `json:"days"`
	StartMinute  int             `json:"start_minute"`
	EndMinute    int             `json:"end_minute"`
	Active       bool            `json:"active"`
}

// HasDay reports whether the class recurs on the given weekday.
func (c ScheduledClass) HasDay(d clock.Weekday) bool {
	for _, day := range c.Days {
		if day == d {
			return true
		}
	}
	return false
}

// StudentProfile is the identity-store view of a student. Semester 0 and an
// empty section mean "unset". Exactly one device may be bound at a time;
// re-binding is an admin action outside this engine.
type StudentProfile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DepartmentID string `json:"department_id"`
	Semester     int    `json:"semester,omitempty"`
	Section      string `json:"section,omitempty"`
	DeviceID     string `json:"device_id"`
}

// Session is one live attendance window for one class occurrence.
type Session struct {
	ID               string    `json:"id"`
	ScheduledClassID string    `json:"scheduled_class_id"`
	AnchorLat        float64   `json:"anchor_lat"`
	AnchorLon        float64   `json:"anchor_lon"`
	RadiusM          float64   `json:"radius_m"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	Active           bool      `json:"active"`
	Locked           bool      `json:"locked"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsLive is the liveness predicate. Expiry is lazy: a session past its end
// instant is dead even if no writer has flipped the active flag yet, so the
// flag alone must never be consulted.
func (s Session) IsLive(now time.Time) bool {
	return s.Active && !s.Locked && !now.After(s.EndsAt)
}

// Mark records one student's presence in one session. Absence is the absence
// of a mark; marks are never mutated or deleted by normal flow.
type Mark struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	DeviceID  string    `json:"device_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	MarkedAt  time.Time `json:"marked_at"`
	Status    string    `json:"status"`
}

// StatusPresent is the only status ever written.
const StatusPresent = "present"

// RosterEntry is one row of the teacher-facing live roster.
type RosterEntry struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	MarkedAt  time.Time `json:"marked_at"`
}
