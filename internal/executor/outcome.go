package executor

import (
	"strings"
	"time"

	"github.com/daydemir/gass/internal/resolver"
	"github.com/daydemir/gass/internal/types"
)

// Outcome is the result of one task.
type Outcome struct {
	Task resolver.Task
	// Executed is true when the agent (or its fallback) returned output.
	Executed bool
	// Validated is true on a passing verdict; the task was then completed.
	Validated bool
	// NeedsRevision is true on a failing verdict.
	NeedsRevision bool
	// Indeterminate is true when the validation call itself failed.
	Indeterminate bool
	Err           error
	// StatusErr is set when completing a validated task failed.
	StatusErr     error
	AutoCompleted []types.PhaseID
	Output        string
	Feedback      string
	Elapsed       time.Duration
}

// Result names the outcome for logs and reports.
func (o Outcome) Result() string {
	switch {
	case !o.Executed:
		return "failed"
	case o.Indeterminate:
		return "indeterminate"
	case o.NeedsRevision:
		return "needs-revision"
	case o.Validated:
		return "validated"
	}
	return "succeeded"
}

// Failure is a failed task in a summary.
type Failure struct {
	ID    types.PhaseID `json:"id"`
	Error string        `json:"error"`
}

// Summary aggregates the outcomes of one or more batches.
type Summary struct {
	Batches       int             `json:"batches"`
	Total         int             `json:"total"`
	Succeeded     int             `json:"succeeded"`
	Failed        int             `json:"failed"`
	Validated     int             `json:"validated"`
	NeedsRevision int             `json:"needs_revision"`
	Indeterminate int             `json:"indeterminate"`
	Elapsed       time.Duration   `json:"elapsed"`
	Failures      []Failure       `json:"failures,omitempty"`
	Revisions     []types.PhaseID `json:"revisions,omitempty"`
}

func (s *Summary) add(o Outcome) {
	s.Total++
	if !o.Executed {
		s.Failed++
		msg := "unknown error"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		s.Failures = append(s.Failures, Failure{ID: o.Task.ID, Error: msg})
		return
	}
	s.Succeeded++
	switch {
	case o.Indeterminate:
		s.Indeterminate++
	case o.NeedsRevision:
		s.NeedsRevision++
		s.Revisions = append(s.Revisions, o.Task.ID)
	case o.Validated:
		s.Validated++
		if o.StatusErr != nil {
			s.Failures = append(s.Failures, Failure{ID: o.Task.ID, Error: "status update: " + o.StatusErr.Error()})
		}
	}
}

func (s *Summary) merge(other *Summary) {
	if other == nil {
		return
	}
	s.Batches += other.Batches
	s.Total += other.Total
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Validated += other.Validated
	s.NeedsRevision += other.NeedsRevision
	s.Indeterminate += other.Indeterminate
	s.Failures = append(s.Failures, other.Failures...)
	s.Revisions = append(s.Revisions, other.Revisions...)
}

// Verdict decides from the validator's text whether a task passed.
type Verdict func(feedback string) bool

var (
	positiveWords = []string{"valid", "complete", "success"}
	// "perlu" is Indonesian for "needs", as in "perlu perbaikan" (needs fixing).
	negativeWords = []string{"error", "missing", "perlu"}
)

// KeywordVerdict passes when the text mentions a positive word, or when
// it mentions none of the negative words. Matching is case-insensitive
// substring search, so "invalid" and "incomplete" count as positive.
func KeywordVerdict(feedback string) bool {
	text := strings.ToLower(feedback)
	for _, w := range positiveWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(text, w) {
			return false
		}
	}
	return true
}
