package utils

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar date format used everywhere.
// Being big-endian, two valid dates compare correctly as plain strings.
const DateLayout = "2006-01-02"

// LastDayOfMonth returns the number of days in the given month, evaluated in loc.
func LastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// IsValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
// Non-padded values and fictitious days such as 2024-02-30 are rejected.
func IsValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return false
	}
	return t.Format(DateLayout) == s
}

// ParseDate splits a valid date into its parts.
func ParseDate(s string) (year int, month time.Month, day int, err error) {
	if !IsValidDate(s) {
		return 0, 0, 0, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	t, _ := time.Parse(DateLayout, s)
	return t.Year(), t.Month(), t.Day(), nil
}

// IsMonthEnd reports whether s is the last calendar day of its month.
func IsMonthEnd(s string) bool {
	year, month, day, err := ParseDate(s)
	if err != nil {
		return false
	}
	return day == LastDayOfMonth(year, month, time.UTC)
}

// FormatDate renders y-m-d in the canonical layout.
func FormatDate(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// DaysAhead returns the date n days after today in loc.
func DaysAhead(now time.Time, loc *time.Location, n int) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).AddDate(0, 0, n).Format(DateLayout)
}

// DaysAgo returns the date n days before today in loc.
func DaysAgo(now time.Time, loc *time.Location, n int) string {
	return DaysAhead(now, loc, -n)
}

// AddDays shifts a canonical date by n calendar days.
func AddDays(s string, n int) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// AddBusinessDays shifts a date by n weekdays, skipping Saturdays and Sundays.
// Negative n moves backwards.
func AddBusinessDays(s string, n int) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for n > 0 {
		t = t.AddDate(0, 0, step)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t.Format(DateLayout), nil
}

// MonthAnchors returns the first day of every calendar month touched by the
// inclusive range [start, end], regardless of the day-of-month of either end.
func MonthAnchors(start, end string) ([]string, error) {
	startYear, startMonth, _, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	endYear, endMonth, _, err := ParseDate(end)
	if err != nil {
		return nil, err
	}

	var anchors []string
	year, month := startYear, startMonth
	for year < endYear || (year == endYear && month <= endMonth) {
		anchors = append(anchors, FormatDate(year, month, 1))
		if month == time.December {
			year++
			month = time.January
		} else {
			month++
		}
	}
	return anchors, nil
}

// LoadLocation resolves a zone name, falling back to UTC on empty input.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}
