package assistant

import (
	"strings"
	"time"
)

// defaultDueOffset is applied when a due date is missing or unparseable.
const defaultDueOffset = 24 * time.Hour

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDue interprets a due date from a model reply. RFC 3339 values keep
// their offset; local date-times are read in loc; a bare date means 09:00 in
// loc. Anything else, including an empty string, yields now+24h and false.
func ParseDue(s string, loc *time.Location, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Add(defaultDueOffset), false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, loc), true
	}
	return now.Add(defaultDueOffset), false
}
