package schedule

import (
	"regexp"
	"strings"
)

// timePattern is the only accepted shift format besides the DayOff
// sentinel. The spacing around the dash is deliberate: it matches what
// the sheet has always contained, and looser forms drifted into bugs.
var timePattern = regexp.MustCompile(`^\d{2}:\d{2} - \d{2}:\d{2}$`)

// ValidValue reports whether v is an acceptable cell value: the day-off
// sentinel (surrounding whitespace tolerated) or a strict
// "HH:MM - HH:MM" range.
func ValidValue(v string) bool {
	trimmed := strings.TrimSpace(v)
	if trimmed == DayOff {
		return true
	}
	return timePattern.MatchString(trimmed)
}
