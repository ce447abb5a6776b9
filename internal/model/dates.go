package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the due date format users type and the bot echoes back.
const DateLayout = "2006-01-02 15:04"

var dueDateLayouts = []string{
	DateLayout,
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate reads a due date typed by a user in loc. RFC 3339 strings keep
// their own offset. A bare day is due at the last instant of that day, so an
// end date given as a day includes all of it.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range dueDateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, use YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
}
