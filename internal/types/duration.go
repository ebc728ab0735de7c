package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Duration is a phase estimate: a bare number of minutes ("45" or 45)
// or a range of minutes ("960-1440"). Free-form estimates such as
// "2-3 days" are kept verbatim for AverageEstimate.
type Duration struct {
	value   string
	numeric bool
}

// Minutes returns a duration of n minutes.
func Minutes(n int) Duration {
	return Duration{value: strconv.Itoa(n), numeric: true}
}

// ParseDuration wraps a textual estimate.
func ParseDuration(s string) Duration {
	return Duration{value: strings.TrimSpace(s)}
}

// IsZero reports whether no duration was set.
func (d Duration) IsZero() bool {
	return d.value == ""
}

func (d Duration) String() string {
	return d.value
}

// Bounds returns the lower and upper bound in minutes. A bare number
// yields equal bounds. Each side is read up to its first non-digit, so
// "90 minutes" reads as 90. ok is false when no leading integer exists.
func (d Duration) Bounds() (lo, hi int, ok bool) {
	s := strings.TrimSpace(d.value)
	if s == "" {
		return 0, 0, false
	}
	if before, after, found := strings.Cut(s, "-"); found {
		lo, okLo := leadingInt(before)
		hi, okHi := leadingInt(after)
		if !okLo && !okHi {
			return 0, 0, false
		}
		if !okLo {
			lo = hi
		}
		if !okHi {
			hi = lo
		}
		return lo, hi, true
	}
	n, ok := leadingInt(s)
	return n, n, ok
}

// ExceedsConservative reports whether either bound is above threshold
// minutes. A range counts as too long as soon as its worst plausible
// case crosses the line, whatever its average.
func (d Duration) ExceedsConservative(threshold int) bool {
	lo, hi, ok := d.Bounds()
	if !ok {
		return false
	}
	return lo > threshold || hi > threshold
}

var (
	rangeEstimatePattern  = regexp.MustCompile(`(?i)(\d+)\s*-\s*(\d+)\s*(hour|day|week|minute|min)s?`)
	singleEstimatePattern = regexp.MustCompile(`(?i)(\d+)\s*(hour|day|week|minute|min)s?`)
)

// Working-time conversion used by AverageEstimate.
const (
	minutesPerHour = 60
	hoursPerDay    = 8
	daysPerWeek    = 5
)

// AverageEstimate converts the estimate to minutes using the midpoint of
// a range and working-time units (8h days, 5-day weeks). Bare numbers
// and bare numeric ranges are minutes. Unparseable input yields 0.
//
// This is a reporting figure. Breakdown decisions use ExceedsConservative.
func (d Duration) AverageEstimate() float64 {
	s := strings.TrimSpace(d.value)
	if s == "" {
		return 0
	}
	if m := rangeEstimatePattern.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return float64(lo+hi) / 2 * unitMinutes(m[3])
	}
	if m := singleEstimatePattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return float64(n) * unitMinutes(m[2])
	}
	lo, hi, ok := d.Bounds()
	if !ok {
		return 0
	}
	return float64(lo+hi) / 2
}

func unitMinutes(unit string) float64 {
	switch strings.ToLower(unit) {
	case "hour":
		return minutesPerHour
	case "day":
		return hoursPerDay * minutesPerHour
	case "week":
		return daysPerWeek * hoursPerDay * minutesPerHour
	default:
		return 1
	}
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// MarshalJSON writes the duration back in the form it was read.
func (d Duration) MarshalJSON() ([]byte, error) {
	if d.numeric {
		return []byte(d.value), nil
	}
	return json.Marshal(d.value)
}

// UnmarshalJSON accepts a JSON string or number.
func (d *Duration) UnmarshalJSON(data []byte) error {
	value, numeric, err := scalarText(data)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	d.value, d.numeric = value, numeric
	return nil
}

// MarshalYAML renders the duration as its literal text.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.value, nil
}
