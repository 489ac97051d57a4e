package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"geoattend/internal/clock"
	"geoattend/internal/geo"
)

// ErrNotFound is the sentinel collaborator stores return when a row does not
// exist. The service translates it into the taxonomy per call site.
var ErrNotFound = errors.New("not found")

// Store persists sessions and marks. Implementations must enforce the two
// uniqueness invariants themselves: at most one active session per scheduled
// class, and at most one mark per (student, session) — the service's
// pre-checks are advisory and racy by themselves.
type Store interface {
	// Session returns a session by id, or ErrNotFound.
	Session(ctx context.Context, id string) (Session, error)
	// OpenSession atomically deactivates-and-locks every active session for
	// the same scheduled class, then inserts s. Returns the stored session
	// and how many prior sessions were superseded.
	OpenSession(ctx context.Context, s Session) (Session, int, error)
	// CloseSession sets active=false, locked=true. Idempotent.
	CloseSession(ctx context.Context, id string) error
	// LiveSessions returns sessions with active=true and ends_at >= now.
	LiveSessions(ctx context.Context, now time.Time) ([]Session, error)
	// HasMark reports whether a mark exists for (studentID, sessionID).
	HasMark(ctx context.Context, studentID, sessionID string) (bool, error)
	// InsertMark writes m guarded by the (student, session) uniqueness
	// constraint; a lost race returns a CONCURRENCY_CONFLICT APIError.
	InsertMark(ctx context.Context, m Mark) (Mark, error)
	// SessionRoster returns roster entries ordered by marked_at ascending.
	SessionRoster(ctx context.Context, sessionID string) ([]RosterEntry, error)
}

// ScheduleStore reads scheduled classes from org management.
type ScheduleStore interface {
	ScheduledClass(ctx context.Context, id string) (ScheduledClass, error)
}

// ProfileStore reads student profiles from the identity store.
type ProfileStore interface {
	StudentProfile(ctx context.Context, id string) (StudentProfile, error)
}

// Service runs the session lifecycle and the mark-time verification chain.
type Service struct {
	store     Store
	schedules ScheduleStore
	profiles  ProfileStore
	civil     *clock.Civil

	sessionTTL time.Duration
	radiusM    float64
}

// NewService wires the engine. sessionTTL is how long a session accepts
// marks after opening; radiusM is the geofence applied to new sessions.
func NewService(store Store, schedules ScheduleStore, profiles ProfileStore, civil *clock.Civil, sessionTTL time.Duration, radiusM float64) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 5 * time.Minute
	}
	if radiusM <= 0 {
		radiusM = 40
	}
	return &Service{
		store:      store,
		schedules:  schedules,
		profiles:   profiles,
		civil:      civil,
		sessionTTL: sessionTTL,
		radiusM:    radiusM,
	}
}

// Open starts a new attendance session for a scheduled class, superseding
// any session still live for it. Checks run in order and the first failure
// wins: ownership, day-of-week, time-of-day window (inclusive at both ends).
func (s *Service) Open(ctx context.Context, classID, teacherID string, lat, lon float64) (Session, error) {
	class, err := s.schedules.ScheduledClass(ctx, classID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, errNotAuthorized("no such class for this teacher")
		}
		return Session{}, err
	}
	if class.TeacherID != teacherID || !class.Active {
		return Session{}, errNotAuthorized("no such class for this teacher")
	}

	today := s.civil.Weekday()
	if !class.HasDay(today) {
		return Session{}, errNoClassToday(fmt.Sprintf("class does not meet on %s", today))
	}

	minute := s.civil.MinuteOfDay()
	if minute < class.StartMinute || minute > class.EndMinute {
		return Session{}, errOutsideWindow(fmt.Sprintf(
			"class runs %s-%s, it is now %s",
			clock.FormatMinute(class.StartMinute), clock.FormatMinute(class.EndMinute), clock.FormatMinute(minute)))
	}

	now := s.civil.Now()
	sess := Session{
		ScheduledClassID: class.ID,
		AnchorLat:        lat,
		AnchorLon:        lon,
		RadiusM:          s.radiusM,
		StartsAt:         now,
		EndsAt:           now.Add(s.sessionTTL),
		Active:           true,
	}
	stored, superseded, err := s.store.OpenSession(ctx, sess)
	if err != nil {
		return Session{}, err
	}
	sessionsOpened.Inc()
	if superseded > 0 {
		sessionsSuperseded.Add(float64(superseded))
		log.Printf("session %s superseded %d prior session(s) for class %s", stored.ID, superseded, class.ID)
	}
	return stored, nil
}

// Close ends a session. Closing a session that is already closed is a no-op.
func (s *Service) Close(ctx context.Context, sessionID, teacherID string) error {
	sess, err := s.store.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errSessionNotFound()
		}
		return err
	}
	if err := s.requireOwner(ctx, sess, teacherID); err != nil {
		return err
	}
	return s.store.CloseSession(ctx, sessionID)
}

// Mark runs the verification chain and commits a presence record. Each step
// fails fast with its own code; nothing is written before every check passes.
func (s *Service) Mark(ctx context.Context, studentID, sessionID, deviceID string, lat, lon float64) (mark Mark, err error) {
	defer func() { observeMark(err) }()

	sess, err := s.store.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Mark{}, errSessionNotFound()
		}
		return Mark{}, err
	}

	if !sess.IsLive(s.civil.Now()) {
		return Mark{}, errSessionExpired()
	}

	class, err := s.schedules.ScheduledClass(ctx, sess.ScheduledClassID)
	if err != nil {
		return Mark{}, err
	}
	student, err := s.profiles.StudentProfile(ctx, studentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Mark{}, errNotEnrolled()
		}
		return Mark{}, err
	}
	if ok, reason := Eligible(student, class); !ok {
		log.Printf("mark rejected: student %s ineligible for class %s: %s", studentID, class.ID, reason)
		return Mark{}, errNotEnrolled()
	}
	if student.Semester == 0 {
		log.Printf("student %s has no semester on file, semester check skipped for class %s", studentID, class.ID)
	}

	// Exact string equality, no normalization. Re-binding is an admin action.
	if student.DeviceID != deviceID {
		return Mark{}, errDeviceMismatch()
	}

	dist := geo.DistanceMeters(lat, lon, sess.AnchorLat, sess.AnchorLon)
	if dist > sess.RadiusM {
		return Mark{}, errOutOfRange(dist, sess.RadiusM)
	}

	if marked, err := s.store.HasMark(ctx, studentID, sessionID); err != nil {
		return Mark{}, err
	} else if marked {
		return Mark{}, errAlreadyMarked()
	}

	return s.store.InsertMark(ctx, Mark{
		SessionID: sessionID,
		StudentID: studentID,
		DeviceID:  deviceID,
		Lat:       lat,
		Lon:       lon,
		MarkedAt:  s.civil.Now(),
		Status:    StatusPresent,
	})
}

// ActiveForStudent resolves the live session the student is eligible for.
// Returns nil when there is none. When several live sessions match (two
// schedules overlapping), the most recently opened wins.
func (s *Service) ActiveForStudent(ctx context.Context, studentID string) (*Session, error) {
	student, err := s.profiles.StudentProfile(ctx, studentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errNotEnrolled()
		}
		return nil, err
	}

	now := s.civil.Now()
	live, err := s.store.LiveSessions(ctx, now)
	if err != nil {
		return nil, err
	}

	var matches []Session
	for _, sess := range live {
		if !sess.IsLive(now) {
			continue
		}
		class, err := s.schedules.ScheduledClass(ctx, sess.ScheduledClassID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if ok, _ := Eligible(student, class); ok {
			matches = append(matches, sess)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		sort.Slice(matches, func(i, j int) bool {
			return matches[i].StartsAt.After(matches[j].StartsAt)
		})
		log.Printf("student %s eligible for %d live sessions, returning newest %s", studentID, len(matches), matches[0].ID)
	}
	return &matches[0], nil
}

// LiveRoster returns who has marked so far, earliest arrival first.
func (s *Service) LiveRoster(ctx context.Context, sessionID, teacherID string) ([]RosterEntry, error) {
	sess, err := s.store.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errSessionNotFound()
		}
		return nil, err
	}
	if err := s.requireOwner(ctx, sess, teacherID); err != nil {
		return nil, err
	}
	return s.store.SessionRoster(ctx, sessionID)
}

// SessionDetail returns a session plus whether the student has marked it.
// The marked flag is computed from the marks table, never from the cached
// current-session pointer on the profile.
func (s *Service) SessionDetail(ctx context.Context, sessionID, studentID string) (Session, bool, error) {
	sess, err := s.store.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, false, errSessionNotFound()
		}
		return Session{}, false, err
	}
	marked, err := s.store.HasMark(ctx, studentID, sessionID)
	if err != nil {
		return Session{}, false, err
	}
	return sess, marked, nil
}

func (s *Service) requireOwner(ctx context.Context, sess Session, teacherID string) error {
	class, err := s.schedules.ScheduledClass(ctx, sess.ScheduledClassID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errNotAuthorized("not your session")
		}
		return err
	}
	if class.TeacherID != teacherID {
		return errNotAuthorized("not your session")
	}
	return nil
}
