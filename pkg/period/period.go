package period

import (
	"fmt"
	"regexp"
	"time"
)

// Layout is the canonical settlement period format.
const Layout = "2006-01"

var keyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Key identifies one settlement month, formatted YYYY-MM.
type Key string

// String implements fmt.Stringer.
func (k Key) String() string {
	return string(k)
}

// IsValid reports whether the key is a well-formed YYYY-MM month.
func (k Key) IsValid() bool {
	return keyRe.MatchString(string(k))
}

// Parse validates raw input and returns a typed Key.
func Parse(value string) (Key, error) {
	k := Key(value)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid period key %q (expected YYYY-MM)", value)
	}
	return k, nil
}

// FromTime derives the period key containing the given instant, in UTC.
func FromTime(t time.Time) Key {
	return Key(t.UTC().Format(Layout))
}

// Current returns the period key for the current month.
func Current() Key {
	return FromTime(time.Now())
}

// Bounds returns the [start, end) instants covered by the period, in UTC.
func (k Key) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse(Layout, string(k))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse period key %q: %w", k, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}
