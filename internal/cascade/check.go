package cascade

import (
	"sort"

	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

// IssueKind classifies a status inconsistency.
type IssueKind string

const (
	// IssueShouldBeCompleted: every child is completed but the parent is not.
	IssueShouldBeCompleted IssueKind = "should be completed"
	// IssueShouldNotBeCompleted: the parent is completed but a child is not.
	// Reported only; the cascade never demotes.
	IssueShouldNotBeCompleted IssueKind = "should NOT be completed"
	// IssueStaleSummary: a parent's cached summary disagrees with the
	// child's own document.
	IssueStaleSummary IssueKind = "stale summary"
)

// Issue is one inconsistency found by Check.
type Issue struct {
	ID     types.PhaseID `json:"id" yaml:"id"`
	Kind   IssueKind     `json:"kind" yaml:"kind"`
	Detail string        `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// PhaseProgress is the completion of one decomposed phase, counted
// over its true leaves.
type PhaseProgress struct {
	ID              types.PhaseID `json:"id" yaml:"id"`
	Title           string        `json:"title" yaml:"title"`
	Status          types.Status  `json:"status" yaml:"status"`
	LeavesCompleted int           `json:"leaves_completed" yaml:"leaves_completed"`
	LeavesTotal     int           `json:"leaves_total" yaml:"leaves_total"`
	Percent         int           `json:"percent" yaml:"percent"`
}

// Report is the outcome of Check.
type Report struct {
	Phases []PhaseProgress `json:"phases" yaml:"phases"`
	Issues []Issue         `json:"issues" yaml:"issues"`
}

// Consistent reports whether no issue was found.
func (r *Report) Consistent() bool {
	return len(r.Issues) == 0
}

// Check inspects every decomposed phase in the tree, or only scope and
// its descendants when scope is non-empty.
func Check(tree *state.Tree, scope types.PhaseID) *Report {
	report := &Report{}

	for _, n := range tree.Documents() {
		if !n.Doc.IsParent() || !inScope(n.ID, scope) {
			continue
		}

		done, total := countLeaves(tree, n)
		percent := 0
		if total > 0 {
			percent = done * 100 / total
		}
		status := n.Status()
		report.Phases = append(report.Phases, PhaseProgress{
			ID:              n.ID,
			Title:           n.Title(),
			Status:          status,
			LeavesCompleted: done,
			LeavesTotal:     total,
			Percent:         percent,
		})

		allChildren := true
		for _, child := range tree.Children(n.ID) {
			childStatus := child.Status()
			if childStatus != types.StatusCompleted {
				allChildren = false
			}
			if child.HasDoc() && child.Summary != nil && child.Summary.Status.OrPending() != childStatus {
				report.Issues = append(report.Issues, Issue{
					ID:     child.ID,
					Kind:   IssueStaleSummary,
					Detail: "summary in " + string(n.ID) + " is " + string(child.Summary.Status.OrPending()) + ", document is " + string(childStatus),
				})
			}
		}

		switch {
		case allChildren && status != types.StatusCompleted:
			report.Issues = append(report.Issues, Issue{ID: n.ID, Kind: IssueShouldBeCompleted})
		case !allChildren && status == types.StatusCompleted:
			report.Issues = append(report.Issues, Issue{ID: n.ID, Kind: IssueShouldNotBeCompleted})
		}
	}
	return report
}

// Repair fixes what Check can fix without demoting anything: stale
// summaries are refreshed and parents whose children are all completed
// are completed, deepest first, through the normal upward cascade.
func (c *Cascader) Repair(report *Report) (*Result, error) {
	issues := append([]Issue(nil), report.Issues...)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].ID.Depth() > issues[j].ID.Depth()
	})

	total := &Result{}
	for _, issue := range issues {
		var (
			res *Result
			err error
		)
		switch issue.Kind {
		case IssueStaleSummary:
			res, err = c.MaybeCompleteParent(issue.ID)
		case IssueShouldBeCompleted:
			res, err = c.completeFromChildren(issue.ID)
		default:
			continue
		}
		if res != nil {
			total.Changes = append(total.Changes, res.Changes...)
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// completeFromChildren re-runs the upward check for id using its first
// child as the trigger.
func (c *Cascader) completeFromChildren(id types.PhaseID) (*Result, error) {
	node, err := c.store.Load(id)
	if err != nil {
		return nil, err
	}
	if !node.IsParent() {
		return &Result{}, nil
	}
	return c.MaybeCompleteParent(node.Phases[0].ID)
}

func countLeaves(tree *state.Tree, n *state.Node) (done, total int) {
	for _, child := range tree.Children(n.ID) {
		if child.IsTrueLeaf() {
			total++
			if child.Status() == types.StatusCompleted {
				done++
			}
			continue
		}
		d, t := countLeaves(tree, child)
		done += d
		total += t
	}
	return done, total
}

func inScope(id, scope types.PhaseID) bool {
	if scope == "" || id == scope {
		return true
	}
	return len(id) > len(scope) && string(id[:len(scope)+1]) == string(scope)+"."
}
