// Package academicyear maps calendar dates to school-year labels such as "2024-2025".
//
// The school year starts on September 1: September through December belong to the year that
// starts in that calendar year, January through August to the year that started the previous
// September.
package academicyear

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StartMonth is the first month of an academic year.
const StartMonth = time.September

// LabelFor returns the academic-year label containing t.
func LabelFor(t time.Time) string {
	year := t.Year()
	if t.Month() >= StartMonth {
		return fmt.Sprintf("%d-%d", year, year+1)
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}

// Current returns the label for now.
func Current(now time.Time) string {
	return LabelFor(now)
}

// RangeFor returns the inclusive bounds of label: September 1 of the first year at midnight and
// the last instant of August 31 of the second year, both in loc.
func RangeFor(label string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	parts := strings.Split(strings.TrimSpace(label), "-")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("academic year %q must look like YYYY-YYYY", label)
	}
	startYear, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("academic year %q: invalid start year: %w", label, err)
	}
	endYear, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("academic year %q: invalid end year: %w", label, err)
	}

	start := time.Date(startYear, StartMonth, 1, 0, 0, 0, 0, loc)
	// first instant of September of endYear minus one nanosecond is the end of August 31
	end := time.Date(endYear, StartMonth, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
	return start, end, nil
}
