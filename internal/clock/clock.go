package clock

import (
	"fmt"
	"time"
)

// Weekday is the closed 3-letter vocabulary shared by scheduled classes and
// the clock. Free-form day strings are not accepted anywhere.
type Weekday string

const (
	Mon Weekday = "Mon"
	Tue Weekday = "Tue"
	Wed Weekday = "Wed"
	Thu Weekday = "Thu"
	Fri Weekday = "Fri"
	Sat Weekday = "Sat"
	Sun Weekday = "Sun"
)

var weekdays = map[time.Weekday]Weekday{
	time.Monday:    Mon,
	time.Tuesday:   Tue,
	time.Wednesday: Wed,
	time.Thursday:  Thu,
	time.Friday:    Fri,
	time.Saturday:  Sat,
	time.Sunday:    Sun,
}

// ParseWeekday validates a stored day string against the vocabulary.
func ParseWeekday(s string) (Weekday, error) {
	switch Weekday(s) {
	case Mon, Tue, Wed, Thu, Fri, Sat, Sun:
		return Weekday(s), nil
	}
	return "", fmt.Errorf("unknown weekday %q", s)
}

// Clock supplies the current instant. Injected so tests can pin time.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Civil converts instants into the single civil calendar the whole system
// compares against. Day-of-week and time-of-day checks must go through here,
// never through the host's local time.
type Civil struct {
	clk Clock
	loc *time.Location
}

// NewCivil builds an adapter for the given IANA timezone.
func NewCivil(clk Clock, tz string) (*Civil, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Civil{clk: clk, loc: loc}, nil
}

// Now returns the current instant in the configured timezone.
func (c *Civil) Now() time.Time {
	return c.clk.Now().In(c.loc)
}

// Weekday returns today's day in the closed vocabulary.
func (c *Civil) Weekday() Weekday {
	return weekdays[c.Now().Weekday()]
}

// MinuteOfDay returns minutes since civil midnight, 0..1439.
func (c *Civil) MinuteOfDay() int {
	now := c.Now()
	return now.Hour()*60 + now.Minute()
}

// ParseHHMM converts a class time like "10:05" to minutes since midnight.
func ParseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad time %q", s)
	}
	return h*60 + m, nil
}

// FormatMinute renders minutes since midnight back to "HH:MM" for messages.
func FormatMinute(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}
