package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDayMonth splits a "DD.MM" reference into its day and zero-padded
// month. Loose input like "5.3" is accepted and normalized.
func ParseDayMonth(ref string) (day int, month string, err error) {
	parts := strings.Split(strings.TrimSpace(ref), ".")
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("bad date reference %q: want DD.MM", ref)
	}
	day, err = strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return 0, "", fmt.Errorf("bad day in date reference %q", ref)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, "", fmt.Errorf("bad month in date reference %q", ref)
	}
	return day, fmt.Sprintf("%02d", m), nil
}

// MonthOf returns the zero-padded month of a "DD.MM" reference, or "" if
// the reference does not parse.
func MonthOf(ref string) string {
	_, month, err := ParseDayMonth(ref)
	if err != nil {
		return ""
	}
	return month
}

// DayKey renders a normalized "DD.MM" key.
func DayKey(day int, month string) string {
	return fmt.Sprintf("%02d.%s", day, month)
}

// ResolveDate turns a "DD.MM" reference into a concrete date in the given
// year.
func ResolveDate(ref string, year int) (time.Time, error) {
	day, month, err := ParseDayMonth(ref)
	if err != nil {
		return time.Time{}, err
	}
	m, _ := monthNumber(month)
	if days, _ := DaysIn(month, year); day > days {
		return time.Time{}, fmt.Errorf("no day %d in month %s of %d", day, month, year)
	}
	return time.Date(year, time.Month(m), day, 0, 0, 0, 0, time.UTC), nil
}

// DaysIn returns the number of calendar days in the month ("01".."12")
// of the given year, leap years included.
func DaysIn(month string, year int) (int, error) {
	m, err := monthNumber(month)
	if err != nil {
		return 0, err
	}
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day(), nil
}

func monthNumber(month string) (int, error) {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("bad month %q", month)
	}
	return m, nil
}
