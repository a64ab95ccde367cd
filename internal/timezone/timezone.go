package timezone

import (
	"strconv"
	"strings"
	"time"
)

var offsetFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700", // Without colon
	"2006-01-02T15:04-07:00",
	"2006-01-02 15:04:05-07:00",
}

var localFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// LocationByName accepts IANA names ("Asia/Kolkata") and fixed offsets
// ("UTC+5:30", "+05:30"). Unknown names resolve to UTC.
func LocationByName(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") || strings.EqualFold(name, "Z") {
		return time.UTC
	}
	if loc, ok := parseOffset(name); ok {
		return loc
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.UTC
}

func parseOffset(name string) (*time.Location, bool) {
	s := strings.TrimPrefix(strings.ToUpper(name), "UTC")
	s = strings.TrimPrefix(s, "GMT")
	if s == "" || (s[0] != '+' && s[0] != '-') {
		return nil, false
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	s = s[1:]

	var hours, mins int
	var err error
	switch {
	case strings.Contains(s, ":"):
		parts := strings.SplitN(s, ":", 2)
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return nil, false
		}
		if mins, err = strconv.Atoi(parts[1]); err != nil {
			return nil, false
		}
	case len(s) == 4:
		if hours, err = strconv.Atoi(s[:2]); err != nil {
			return nil, false
		}
		if mins, err = strconv.Atoi(s[2:]); err != nil {
			return nil, false
		}
	default:
		if hours, err = strconv.Atoi(s); err != nil {
			return nil, false
		}
	}
	if hours > 14 || mins > 59 {
		return nil, false
	}
	return time.FixedZone(name, sign*(hours*3600+mins*60)), true
}

// ParseTimestamp reads a backend timestamp. Strings carrying an offset keep
// it; bare local times are interpreted in tzName.
func ParseTimestamp(value string, tzName string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, format := range offsetFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}

	loc := LocationByName(tzName)
	for _, format := range localFormats {
		if t, err := time.ParseInLocation(format, value, loc); err == nil {
			return t, nil
		}
	}

	if secs, err := strconv.ParseInt(value, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).In(loc), nil
	}

	return time.Time{}, &time.ParseError{
		Value:   value,
		Message: "unable to parse time string",
	}
}

// MinuteOfDay is the local wall-clock minute of t, 0 to 1439.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
