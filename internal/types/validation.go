package types

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation error with structured information
type ValidationError struct {
	Field    string      // JSON field path like "phases[0].id"
	Expected string      // What was expected: "non-empty string"
	Actual   interface{} // What was found
	Message  string      // Human-readable description
}

// ValidationErrors is a collection of validation errors
type ValidationErrors struct {
	Errors []ValidationError
}

// Add appends a new validation error to the collection
func (v *ValidationErrors) Add(field, expected string, actual interface{}, msg string) {
	v.Errors = append(v.Errors, ValidationError{
		Field:    field,
		Expected: expected,
		Actual:   actual,
		Message:  msg,
	})
}

// HasErrors returns true if there are any validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
// Returns a simple error message for standard error handling
func (v *ValidationErrors) Error() string {
	if !v.HasErrors() {
		return "no validation errors"
	}

	if len(v.Errors) == 1 {
		e := v.Errors[0]
		return fmt.Sprintf("validation error in field %s: %s", e.Field, e.Message)
	}

	return fmt.Sprintf("validation failed with %d errors", len(v.Errors))
}

// ToPrompt formats validation errors so a regeneration request can
// name exactly what the previous attempt got wrong
func (v *ValidationErrors) ToPrompt() string {
	if !v.HasErrors() {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Validation failed with %d error(s):\n\n", len(v.Errors)))

	for i, err := range v.Errors {
		sb.WriteString(fmt.Sprintf("%d. Field: %s\n", i+1, err.Field))
		sb.WriteString(fmt.Sprintf("   Expected: %s\n", err.Expected))
		sb.WriteString(fmt.Sprintf("   Found: %v\n", formatActual(err.Actual)))
		sb.WriteString(fmt.Sprintf("   Fix: %s\n", err.Message))

		if i < len(v.Errors)-1 {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// formatActual formats the actual value for display
func formatActual(actual interface{}) string {
	if actual == nil {
		return "null"
	}

	switch v := actual.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []string:
		if len(v) == 0 {
			return "[]"
		}
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return fmt.Sprintf("%v", actual)
	}
}

// ValidatePhaseData checks the minimal shape of a generated decomposition:
// non-empty title and description, a non-empty phases array whose entries
// carry id and title, and, when an execution plan is present, its
// parallel_groups and critical_path arrays.
func ValidatePhaseData(n *PhaseNode) *ValidationErrors {
	errs := &ValidationErrors{}

	if strings.TrimSpace(n.Title) == "" {
		errs.Add("title", "non-empty string", n.Title, "Provide a title for the phase")
	}
	if strings.TrimSpace(n.Description) == "" {
		errs.Add("description", "non-empty string", n.Description, "Provide a description for the phase")
	}
	if len(n.Phases) == 0 {
		errs.Add("phases", "array with at least one sub-phase", []string{}, "Break the phase down into sub-phases")
	}
	for i, child := range n.Phases {
		if child.ID == "" || strings.TrimSpace(child.Title) == "" {
			errs.Add(
				fmt.Sprintf("phases[%d]", i),
				"object with id and title",
				fmt.Sprintf("id=%q title=%q", child.ID, child.Title),
				"Give every sub-phase an id and a title",
			)
		}
	}
	if n.ExecutionPlan != nil {
		for _, key := range []string{"parallel_groups", "critical_path"} {
			if _, ok := n.ExecutionPlan[key].([]any); !ok {
				errs.Add(
					"execution_plan."+key,
					"array",
					n.ExecutionPlan[key],
					fmt.Sprintf("Provide execution_plan.%s as an array", key),
				)
			}
		}
	}

	return errs
}
