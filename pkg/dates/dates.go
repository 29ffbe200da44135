// Package dates normalizes the heterogeneous date strings found in donor
// spreadsheet exports into canonical calendar dates.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnparsable is returned when a date string matches none of the known
// formats. Callers must treat it as "date unknown" and keep the row out of
// date-bounded computations instead of failing the whole query.
var ErrUnparsable = errors.New("unparsable date")

// CanonicalFormat is the layout used for normalized date strings. It sorts
// lexicographically in calendar order.
const CanonicalFormat = "2006-01-02"

// monthNames holds the twelve canonical Cyrillic month labels, 1-indexed
// via time.Month.
var monthNames = [12]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Day-first layouts tried when the raw string contains '.' or '/'.
// Non-padded components so both "5.1.2025" and "05.01.2025" parse.
var dayFirstLayouts = []string{
	"2.1.2006",
	"2/1/2006",
	"2.1.2006 15:04:05",
	"2/1/2006 15:04:05",
	"2.1.2006 15:04",
	"2/1/2006 15:04",
	"2.1.06",
	"2/1/06",
}

// General layouts for everything else (ISO 8601 and common variants).
var generalLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"20060102",
}

// Parse converts a raw spreadsheet date string into a time.Time. Strings
// containing '.' or '/' are interpreted day-first (DD.MM.YYYY, DD/MM/YYYY);
// everything else goes through the general ISO-style layouts.
func Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrUnparsable)
	}

	layouts := generalLayouts
	if strings.ContainsAny(s, "./") {
		layouts = dayFirstLayouts
	} else {
		// Trailing Z without offset shows up in exported ISO stamps.
		s = strings.TrimSuffix(s, "Z")
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, raw)
}

// Canonical returns the normalized YYYY-MM-DD form of a raw date string.
func Canonical(raw string) (string, error) {
	t, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return t.Format(CanonicalFormat), nil
}

// MonthName returns the Cyrillic label for a calendar month.
func MonthName(m time.Month) string {
	return monthNames[int(m)-1]
}

// MonthIndex maps a Cyrillic month label back to its calendar month.
// Matching is case-insensitive and tolerates surrounding whitespace.
func MonthIndex(name string) (time.Month, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for i, n := range monthNames {
		if strings.ToLower(n) == needle {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// MonthNames returns the twelve canonical labels in calendar order.
func MonthNames() []string {
	out := make([]string, len(monthNames))
	copy(out, monthNames[:])
	return out
}
