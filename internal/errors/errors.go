// Package errors defines the failure taxonomy shared by the plan store,
// the breakdown loop and the task executor.
//
// Sentinels classify a failure; typed errors carry its context and unwrap
// to their sentinel, so callers test with errors.Is and inspect with
// errors.As:
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
//
//	var capErr *errors.IterationCapError
//	if errors.As(err, &capErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

var (
	// ErrNotFound indicates a phase has no stored document. Usually not
	// fatal: callers read it as "no decomposition exists yet".
	ErrNotFound = New("phase not found")
	// ErrSchemaInvalid indicates a generated decomposition failed shape validation.
	ErrSchemaInvalid = New("generated phase data is invalid")
	// ErrAgent indicates the external agent could not be invoked or failed.
	ErrAgent = New("agent invocation failed")
	// ErrValidationIndeterminate indicates the validation call itself failed.
	ErrValidationIndeterminate = New("validation indeterminate")
	// ErrIterationCapExceeded indicates the breakdown loop hit its iteration limit.
	ErrIterationCapExceeded = New("breakdown iteration cap exceeded")
	// ErrInvalidIndex indicates the top-level plan index is malformed.
	ErrInvalidIndex = New("invalid plan index")
)

// NotFoundError reports a missing phase document.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("phase %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a NotFoundError for id.
func NewNotFoundError(id string) error {
	return &NotFoundError{ID: id}
}

// SchemaError reports why generated data was rejected.
type SchemaError struct {
	ID      string
	Reasons []string
	Err     error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("invalid phase data for %s", e.ID)
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSchemaInvalid, e.Err}
	}
	return []error{ErrSchemaInvalid}
}

// AgentError wraps a failure from a named agent.
type AgentError struct {
	Agent string
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %v", e.Agent, e.Err)
}

func (e *AgentError) Unwrap() []error {
	return []error{ErrAgent, e.Err}
}

// NewAgentError wraps err as a failure of the named agent.
func NewAgentError(agent string, err error) error {
	if err == nil {
		return nil
	}
	return &AgentError{Agent: agent, Err: err}
}

// IterationCapError reports a breakdown loop that did not converge.
type IterationCapError struct {
	Max       int
	Completed []string
	Failed    []string
}

func (e *IterationCapError) Error() string {
	return fmt.Sprintf("breakdown loop reached %d iterations without converging (%d completed, %d failed: %s)",
		e.Max, len(e.Completed), len(e.Failed), strings.Join(e.Failed, ", "))
}

func (e *IterationCapError) Unwrap() error {
	return ErrIterationCapExceeded
}

// IsNotFound reports whether err means a missing phase document.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}

// IsFatal reports whether err should stop the process rather than be
// recorded against a single phase or task.
func IsFatal(err error) bool {
	return Is(err, ErrIterationCapExceeded) || Is(err, ErrInvalidIndex)
}
