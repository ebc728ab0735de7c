// Package breakdown drives the convergence loop that decomposes phases
// until none is left too large or unplanned.
package breakdown

import (
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

// Thresholds in minutes.
const (
	// LoopThreshold is the size above which the loop decomposes a phase.
	LoopThreshold = 30
	// AuditThreshold is the size above which Audit reports a leaf.
	AuditThreshold = 60
)

// NeedsBreakdown decides whether a phase must be (re)generated: when it
// has no stored document, when the document carries
// breakdown_complete=false, when either bound of its duration exceeds
// threshold, or when its previous attempt failed. An existing
// decomposition does not exempt an oversized phase.
func NeedsBreakdown(phase types.ChildSummary, doc *types.PhaseNode, failed bool, threshold int) bool {
	switch {
	case doc == nil:
		return true
	case doc.BreakdownIncomplete():
		return true
	case durationOf(phase, doc).ExceedsConservative(threshold):
		return true
	}
	return failed
}

// needsDeepBreakdown is the policy for nested phases in deep mode. A
// missing document alone does not trigger generation, since most
// nested phases are meant to stay leaves, and a nested phase that
// already has sub-phases is left alone.
func needsDeepBreakdown(phase types.ChildSummary, doc *types.PhaseNode, failed bool, threshold int) bool {
	if failed {
		return true
	}
	if doc != nil {
		if doc.BreakdownIncomplete() {
			return true
		}
		if doc.IsParent() {
			return false
		}
	}
	return durationOf(phase, doc).ExceedsConservative(threshold)
}

func durationOf(phase types.ChildSummary, doc *types.PhaseNode) types.Duration {
	if !phase.Duration.IsZero() {
		return phase.Duration
	}
	if doc != nil {
		return doc.Duration
	}
	return types.Duration{}
}

// Finding is a leaf whose estimate is too large to execute in one go.
type Finding struct {
	ID       types.PhaseID  `json:"id" yaml:"id"`
	Title    string         `json:"title" yaml:"title"`
	Duration types.Duration `json:"duration" yaml:"duration"`
	// Estimate is the average estimate in minutes.
	Estimate float64 `json:"estimate_minutes" yaml:"estimate_minutes"`
}

// Audit lists the true leaves whose duration exceeds threshold by the
// conservative either-bound rule.
func Audit(tree *state.Tree, threshold int) []Finding {
	var findings []Finding
	for _, root := range tree.Roots() {
		findings = auditNode(tree, root, threshold, findings)
	}
	return findings
}

func auditNode(tree *state.Tree, n *state.Node, threshold int, findings []Finding) []Finding {
	if n.IsTrueLeaf() {
		var d types.Duration
		if n.Doc != nil {
			d = n.Doc.Duration
		}
		if d.IsZero() && n.Summary != nil {
			d = n.Summary.Duration
		}
		if d.ExceedsConservative(threshold) {
			findings = append(findings, Finding{ID: n.ID, Title: n.Title(), Duration: d, Estimate: d.AverageEstimate()})
		}
		return findings
	}
	for _, child := range tree.Children(n.ID) {
		findings = auditNode(tree, child, threshold, findings)
	}
	return findings
}
