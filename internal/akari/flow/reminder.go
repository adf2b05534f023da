package flow

// reminder.go resolves natural reminder phrases against a reference time.
// Parsing is scan-based: the phrase may sit anywhere in the text, so "visit
// dentist tomorrow" works as well as a bare "tomorrow". Resolved times are
// always in the future relative to the reference.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Default hours for phrases that name a day but not a time.
const (
	reminderMorningHour = 9  // "tomorrow", weekday names, "next week"
	reminderEveningHour = 18 // "today"
	reminderNightHour   = 20 // "tonight"
)

var (
	inAmountRe = regexp.MustCompile(`\bin\s+(\d{1,3})\s+(minute|minutes|min|mins|hour|hours|hr|hrs|day|days|week|weeks)\b`)
	weekdayRe  = regexp.MustCompile(`\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseReminder scans text for a reminder phrase and resolves it against
// now. Recognised shapes: "in N minutes/hours/days/weeks", "today",
// "tonight", "tomorrow", "next week", and bare weekday names. The zero time
// and false mean nothing was recognised.
func ParseReminder(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	if m := inAmountRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			switch {
			case strings.HasPrefix(m[2], "min"):
				return now.Add(time.Duration(n) * time.Minute), true
			case strings.HasPrefix(m[2], "h"):
				return now.Add(time.Duration(n) * time.Hour), true
			case strings.HasPrefix(m[2], "day"):
				return now.AddDate(0, 0, n), true
			case strings.HasPrefix(m[2], "week"):
				return now.AddDate(0, 0, 7*n), true
			}
		}
	}

	if strings.Contains(lower, "tomorrow") {
		return atHour(now.AddDate(0, 0, 1), reminderMorningHour), true
	}
	if strings.Contains(lower, "tonight") {
		return futureOr(atHour(now, reminderNightHour), now), true
	}
	if strings.Contains(lower, "today") {
		return futureOr(atHour(now, reminderEveningHour), now), true
	}
	if strings.Contains(lower, "next week") {
		return atHour(now.AddDate(0, 0, daysUntil(now, time.Monday)), reminderMorningHour), true
	}
	if m := weekdayRe.FindStringSubmatch(lower); m != nil {
		wd := weekdayNames[m[1]]
		return atHour(now.AddDate(0, 0, daysUntil(now, wd)), reminderMorningHour), true
	}

	return time.Time{}, false
}

// atHour pins t's date to the given hour, on the dot.
func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

// futureOr returns t unless it has already passed, in which case the
// reminder lands an hour from now. "today" said at 11pm still means soon,
// not eleven hours ago.
func futureOr(t, now time.Time) time.Time {
	if t.After(now) {
		return t
	}
	return now.Add(time.Hour)
}

// daysUntil returns how many days from now the next occurrence of wd is,
// always at least one: "friday" said on a Friday means the following week.
func daysUntil(now time.Time, wd time.Weekday) int {
	d := (int(wd) - int(now.Weekday()) + 7) % 7
	if d == 0 {
		d = 7
	}
	return d
}
