package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status represents the execution status of a phase or task
type Status string

const (
	// StatusPending indicates work has not started
	StatusPending Status = "pending"
	// StatusInProgress indicates work is currently executing
	StatusInProgress Status = "in-progress"
	// StatusCompleted indicates work has finished and was validated
	StatusCompleted Status = "completed"
)

// IsValid checks if a status value is valid
func (s Status) IsValid() bool {
	for _, valid := range AllStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// AllStatuses returns all valid status values
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// OrPending treats an empty status as pending.
func (s Status) OrPending() Status {
	if s == "" {
		return StatusPending
	}
	return s
}

// ParseStatus converts user input to a Status.
// "in_progress" and "inprogress" are accepted as spellings of in-progress.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "in_progress", "inprogress":
		normalized = string(StatusInProgress)
	}
	status := Status(normalized)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status %q (expected one of: pending, in-progress, completed)", s)
	}
	return status, nil
}

// Priority ranks used by the scheduler.
const (
	RankHigh         = 1
	RankMedium       = 2
	RankLow          = 3
	RankUnrecognized = 999
)

// Priority is either a named level (high, medium, low) or an integer.
// The JSON form is preserved: numbers stay numbers, strings stay strings.
type Priority struct {
	value   string
	numeric bool
}

// NamedPriority returns a priority holding a textual level.
func NamedPriority(level string) Priority {
	return Priority{value: level}
}

// NumericPriority returns a priority holding an integer.
func NumericPriority(n int) Priority {
	return Priority{value: strconv.Itoa(n), numeric: true}
}

// Rank collapses the priority to an integer: high=1, medium=2, low=3,
// an integer literal is itself, anything else sorts last.
func (p Priority) Rank() int {
	switch strings.ToLower(strings.TrimSpace(p.value)) {
	case "high":
		return RankHigh
	case "medium":
		return RankMedium
	case "low":
		return RankLow
	}
	if n, err := strconv.Atoi(strings.TrimSpace(p.value)); err == nil {
		return n
	}
	return RankUnrecognized
}

// IsZero reports whether no priority was set.
func (p Priority) IsZero() bool {
	return p.value == ""
}

func (p Priority) String() string {
	return p.value
}

// MarshalJSON writes the priority back in the form it was read.
func (p Priority) MarshalJSON() ([]byte, error) {
	if p.numeric {
		return []byte(p.value), nil
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON accepts a JSON string or number.
func (p *Priority) UnmarshalJSON(data []byte) error {
	value, numeric, err := scalarText(data)
	if err != nil {
		return fmt.Errorf("priority: %w", err)
	}
	p.value, p.numeric = value, numeric
	return nil
}

// MarshalYAML renders the priority as its literal text.
func (p Priority) MarshalYAML() (interface{}, error) {
	if p.numeric {
		return p.Rank(), nil
	}
	return p.value, nil
}

// scalarText reads a JSON string, number or null into its text form.
func scalarText(data []byte) (string, bool, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return "", false, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, err
		}
		return s, false, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", false, fmt.Errorf("expected string or number, got %s", trimmed)
	}
	return n.String(), true, nil
}
