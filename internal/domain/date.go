package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DisplayLayout is the human-facing date format used across the dashboard.
	DisplayLayout = "02.01.2006"
	// InputLayout is the machine-sortable format of <input type="date">.
	InputLayout = "2006-01-02"

	secondsPerDay = 24 * 60 * 60
)

// Clock returns the current instant. Services take a Clock instead of calling
// time.Now directly so "today" can be pinned in tests.
type Clock func() time.Time

// SystemClock is the production Clock.
func SystemClock() time.Time { return time.Now() }

// Today returns the calendar date of the clock's current instant.
func (c Clock) Today() time.Time {
	if c == nil {
		return DateOf(time.Now())
	}
	return DateOf(c())
}

// DateOf drops the time-of-day of t and returns the same calendar date at
// midnight UTC. All dates in this package are naive: the wall-clock
// year/month/day of t are kept regardless of its location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDisplayDate parses "DD.MM.YYYY" or "YYYY-MM-DD".
// It reports false for empty input, any other shape, or a date that does not
// exist on the calendar (e.g. 31.04.2025).
func ParseDisplayDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) == 10 && s[2] == '.' && s[5] == '.':
		return civilDate(s[6:10], s[3:5], s[0:2])
	case len(s) == 10 && s[4] == '-' && s[7] == '-':
		return civilDate(s[0:4], s[5:7], s[8:10])
	}
	return time.Time{}, false
}

// civilDate builds a date from its digit groups and rejects anything that
// time.Date would silently normalise (day 31 in April becomes 1 May).
func civilDate(ys, ms, ds string) (time.Time, bool) {
	y, ok1 := digits(ys)
	m, ok2 := digits(ms)
	d, ok3 := digits(ds)
	if !ok1 || !ok2 || !ok3 || m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func digits(s string) (int, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// FormatDisplayDate renders t as "DD.MM.YYYY". The zero time renders as "".
func FormatDisplayDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayLayout)
}

// FormatInputDate renders t as "YYYY-MM-DD". The zero time renders as "".
func FormatInputDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(InputLayout)
}

// InputToDisplay converts "YYYY-MM-DD" to "DD.MM.YYYY", or "" if s is not a
// valid input-format date.
func InputToDisplay(s string) string {
	s = strings.TrimSpace(s)
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return ""
	}
	t, ok := ParseDisplayDate(s)
	if !ok {
		return ""
	}
	return FormatDisplayDate(t)
}

// FormatOptionalDate renders a nullable date in display format.
func FormatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatDisplayDate(*t)
}

// DaysBetween returns b - a in whole calendar days.
// Both values are normalised to their dates first, so daylight-saving
// transitions never shift the result. Day numbers are compared instead of
// a time.Duration, which saturates after about 292 years.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Unix()/secondsPerDay - DateOf(a).Unix()/secondsPerDay)
}

// AddDays returns the date n days after t (n may be negative).
func AddDays(t time.Time, n int) time.Time {
	return DateOf(t).AddDate(0, 0, n)
}

// MustParseDate is ParseDisplayDate for literals known to be valid.
func MustParseDate(s string) time.Time {
	t, ok := ParseDisplayDate(s)
	if !ok {
		panic(fmt.Sprintf("domain.MustParseDate: invalid date %q", s))
	}
	return t
}

// DatePtr returns a pointer to a copy of t.
func DatePtr(t time.Time) *time.Time { return &t }
