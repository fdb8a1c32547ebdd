package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Relative timeframes resolve against the invocation time passed in by the
// caller, never against an ambient clock. The resolved due date falls at the
// start of the day (00:00 local) unless the utterance states an explicit
// clock time such as "at 5pm".

var (
	inDaysRe      = regexp.MustCompile(`\bin (\d+) days?\b`)
	inWeeksRe     = regexp.MustCompile(`\bin (\d+) weeks?\b`)
	nextWeekdayRe = regexp.MustCompile(`\bnext (monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	clockRe       = regexp.MustCompile(`\bat (\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ResolveDueDate parses a relative timeframe from text and resolves it
// against now. Supported expressions: "tomorrow", "day after tomorrow",
// "next <weekday>" (nearest strictly-future occurrence), "in N days",
// "in N weeks", "next week" (+7 days), "end of month", "today". An optional
// "at H[:MM][am|pm]" sets the time of day. Returns false when no timeframe
// is stated.
func ResolveDueDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	day, ok := resolveDay(lower, now)
	if !ok {
		return time.Time{}, false
	}

	if h, m, ok := resolveClock(lower); ok {
		day = time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
	}
	return day, true
}

func resolveDay(lower string, now time.Time) (time.Time, bool) {
	y, m, d := now.Date()
	loc := now.Location()
	startOf := func(days int) time.Time {
		return time.Date(y, m, d+days, 0, 0, 0, 0, loc)
	}

	switch {
	case strings.Contains(lower, "day after tomorrow"):
		return startOf(2), true
	case strings.Contains(lower, "tomorrow"):
		return startOf(1), true
	case strings.Contains(lower, "next week"):
		return startOf(7), true
	case strings.Contains(lower, "end of month"), strings.Contains(lower, "end of the month"):
		// First of next month minus one day.
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1), true
	}

	if match := nextWeekdayRe.FindStringSubmatch(lower); match != nil {
		target := weekdays[match[1]]
		delta := (int(target) - int(now.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return startOf(delta), true
	}

	if match := inDaysRe.FindStringSubmatch(lower); match != nil {
		n, err := strconv.Atoi(match[1])
		if err == nil {
			return startOf(n), true
		}
	}

	if match := inWeeksRe.FindStringSubmatch(lower); match != nil {
		n, err := strconv.Atoi(match[1])
		if err == nil {
			return startOf(n * 7), true
		}
	}

	if strings.Contains(lower, "today") || strings.Contains(lower, "tonight") {
		return startOf(0), true
	}

	return time.Time{}, false
}

func resolveClock(lower string) (hour, minute int, ok bool) {
	match := clockRe.FindStringSubmatch(lower)
	if match == nil {
		return 0, 0, false
	}

	hour, err := strconv.Atoi(match[1])
	if err != nil || hour > 23 {
		return 0, 0, false
	}
	if match[2] != "" {
		minute, err = strconv.Atoi(match[2])
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}

	switch match[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute, true
}
