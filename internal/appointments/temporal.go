package appointments

import (
	"regexp"
	"strings"
	"time"
)

// hourMinute matches a time-of-day lacking seconds, e.g. "9:30" or "14:05".
var hourMinute = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// instantLayouts are tried in order against the assembled timestamp.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// resolveInstant parses the raw date/time texts into a single instant.
// The bool result is true when the pair is unclassifiable; such records are
// never upcoming and sort after everything classifiable. The function is
// deterministic over its inputs and never fails.
func resolveInstant(dateText, timeText string) (time.Time, bool) {
	date := strings.TrimSpace(dateText)
	if date == "" {
		return time.Time{}, true
	}

	clock := strings.TrimSpace(timeText)
	switch strings.ToLower(clock) {
	case "", "null", "undefined":
		// Null-like placeholders mean midnight, not failure.
		clock = "00:00:00"
	}
	if hourMinute.MatchString(clock) {
		clock += ":00"
	}

	// A date already carrying the separator is a complete timestamp; the
	// time text is ignored in that case.
	candidate := date
	if !strings.Contains(date, "T") {
		candidate = date + "T" + clock
	}

	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, candidate, time.Local); err == nil {
			return t, false
		}
	}
	return time.Time{}, true
}
