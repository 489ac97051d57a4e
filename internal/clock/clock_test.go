package clock

import (
	"testing"
	"time"
)

type fixed struct{ t time.Time }

func (f fixed) Now() time.Time { return f.t }

func TestCivilConvertsToConfiguredZone(t *testing.T) {
	// 04:45 UTC on a Monday is 10:15 IST the same day.
	instant := time.Date(2026, 3, 2, 4, 45, 0, 0, time.UTC)
	civil, err := NewCivil(fixed{instant}, "Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewCivil: %v", err)
	}
	if got := civil.Weekday(); got != Mon {
		t.Errorf("Weekday = %s, want Mon", got)
	}
	if got := civil.MinuteOfDay(); got != 10*60+15 {
		t.Errorf("MinuteOfDay = %d, want 615", got)
	}
}

func TestCivilHostZoneIrrelevant(t *testing.T) {
	// 20:00 UTC Sunday is already Monday 01:30 in IST.
	instant := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	civil, err := NewCivil(fixed{instant}, "Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewCivil: %v", err)
	}
	if got := civil.Weekday(); got != Mon {
		t.Errorf("Weekday = %s, want Mon (day must roll with the configured zone)", got)
	}
}

func TestNewCivilRejectsBadZone(t *testing.T) {
	if _, err := NewCivil(fixed{time.Now()}, "Not/AZone"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestWeekdayVocabulary(t *testing.T) {
	// 2026-03-02 is a Monday; walk the whole week.
	want := []Weekday{Mon, Tue, Wed, Thu, Fri, Sat, Sun}
	for i, w := range want {
		instant := time.Date(2026, 3, 2+i, 12, 0, 0, 0, time.UTC)
		civil, err := NewCivil(fixed{instant}, "UTC")
		if err != nil {
			t.Fatalf("NewCivil: %v", err)
		}
		if got := civil.Weekday(); got != w {
			t.Errorf("day %d: Weekday = %s, want %s", i, got, w)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	if d, err := ParseWeekday("Wed"); err != nil || d != Wed {
		t.Errorf("ParseWeekday(Wed) = %v, %v", d, err)
	}
	for _, bad := range []string{"wednesday", "WED", "We", ""} {
		if _, err := ParseWeekday(bad); err == nil {
			t.Errorf("ParseWeekday(%q) accepted free-form day", bad)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"10:05", 605, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"10:60", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseHHMM(tc.in)
		if tc.wantErr != (err != nil) {
			t.Errorf("ParseHHMM(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseHHMM(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatMinute(t *testing.T) {
	if got := FormatMinute(605); got != "10:05" {
		t.Errorf("FormatMinute(605) = %q, want 10:05", got)
	}
}
