package importer

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMeetingTime is the fallback when a start time cannot be parsed.
const DefaultMeetingTime = "12:00"

// weekdayIndex maps English weekday names to the root server's day
// encoding, 0=Sunday through 6=Saturday.
var weekdayIndex = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// MapDayToBMLT encodes a weekday name. The lookup is case-insensitive
// and total: anything unrecognized (including empty) encodes to 0.
// NAWS exports have always been tolerated this way, so the lossy
// fallback is kept for compatibility.
func MapDayToBMLT(day string) int {
	if idx, ok := weekdayIndex[strings.ToLower(strings.TrimSpace(day))]; ok {
		return idx
	}
	return 0
}

// IsValidWeekday reports whether day names one of the seven English
// weekdays, case-insensitively.
func IsValidWeekday(day string) bool {
	_, ok := weekdayIndex[strings.ToLower(strings.TrimSpace(day))]
	return ok
}

// ParseTime normalizes a NAWS time cell to "HH:MM" (24-hour). It
// accepts a bare 3-or-4 digit numeral read as HHMM ("930" → "09:30",
// "1930" → "19:30") or a colon-separated H:MM/HH:MM value. All other
// characters are stripped before parsing.
func ParseTime(raw string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ':' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" {
		return "", false
	}

	var hour, minute int
	if strings.Contains(cleaned, ":") {
		parts := strings.Split(cleaned, ":")
		if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 2 {
			return "", false
		}
		h, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return "", false
		}
		hour, minute = h, m
	} else {
		if len(cleaned) < 3 || len(cleaned) > 4 {
			return "", false
		}
		n, err := strconv.Atoi(cleaned)
		if err != nil {
			return "", false
		}
		hour, minute = n/100, n%100
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// FormatTimeForBMLT encodes a start time, falling back to
// DefaultMeetingTime when the value cannot be parsed.
func FormatTimeForBMLT(raw string) string {
	if t, ok := ParseTime(raw); ok {
		return t
	}
	return DefaultMeetingTime
}

// ParseCoordinate parses a coordinate cell, returning def on blank or
// unparsable input.
func ParseCoordinate(raw string, def float64) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// isTruthy recognizes the NAWS boolean cells ("TRUE"/"1").
func isTruthy(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || s == "1"
}
