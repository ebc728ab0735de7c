// Package resolver selects the true leaves of the plan that are ready to
// execute: pending, undecomposed, with every dependency completed.
package resolver

import (
	"sort"
	"strings"

	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

// AncestorInfo is context about one ancestor of a task.
type AncestorInfo struct {
	ID          types.PhaseID `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Status      types.Status  `json:"status" yaml:"status"`
	Progress    float64       `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// Task is a ready leaf with the context needed to execute it.
type Task struct {
	ID           types.PhaseID   `json:"id" yaml:"id"`
	Title        string          `json:"title" yaml:"title"`
	Description  string          `json:"description,omitempty" yaml:"description,omitempty"`
	Duration     types.Duration  `json:"duration,omitzero" yaml:"duration,omitempty"`
	Priority     types.Priority  `json:"priority,omitzero" yaml:"priority,omitempty"`
	Rank         int             `json:"rank" yaml:"rank"`
	Status       types.Status    `json:"status" yaml:"status"`
	Dependencies []types.PhaseID `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Deliverables []any           `json:"deliverables,omitempty" yaml:"deliverables,omitempty"`
	ParentID     types.PhaseID   `json:"parent_id" yaml:"parent_id"`
	ParentTitle  string          `json:"parent_title,omitempty" yaml:"parent_title,omitempty"`
	ParentStatus types.Status    `json:"parent_status" yaml:"parent_status"`
	// Ancestors runs from the root to the immediate parent.
	Ancestors []AncestorInfo `json:"ancestors" yaml:"ancestors"`
}

// Options narrows the candidate set.
type Options struct {
	// Scope restricts candidates to the child summaries of one document.
	Scope types.PhaseID
	// Filter keeps tasks whose description contains it (case-insensitive)
	// or whose id contains it.
	Filter string
	// Exclude drops ids already claimed by the caller.
	Exclude map[types.PhaseID]bool
}

// ReadyLeaves returns the ready tasks of tree in priority order, ties
// broken by natural id order. A dependency on an unknown id is never
// satisfied. A scope without a stored document is NotFound.
func ReadyLeaves(tree *state.Tree, opts Options) ([]Task, error) {
	var parents []*state.Node
	if opts.Scope != "" {
		n, ok := tree.Get(opts.Scope)
		if !ok || !n.HasDoc() {
			return nil, errors.NewNotFoundError(string(opts.Scope))
		}
		parents = []*state.Node{n}
	} else {
		parents = tree.Documents()
	}

	var tasks []Task
	for _, parent := range parents {
		for i := range parent.Doc.Phases {
			id := parent.Doc.Phases[i].ID
			n, ok := tree.Get(id)
			if !ok || !n.IsTrueLeaf() || opts.Exclude[id] {
				continue
			}
			if n.Status() != types.StatusPending {
				continue
			}
			task := buildTask(tree, n, parent)
			if !dependenciesMet(tree, task.Dependencies) || !matches(task, opts.Filter) {
				continue
			}
			tasks = append(tasks, task)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Rank != tasks[j].Rank {
			return tasks[i].Rank < tasks[j].Rank
		}
		return types.CompareIDs(tasks[i].ID, tasks[j].ID) < 0
	})
	return tasks, nil
}

// Load builds a tree from store and resolves it.
func Load(store *state.PlanStore, opts Options) ([]Task, error) {
	tree, err := state.BuildTree(store)
	if err != nil {
		return nil, err
	}
	return ReadyLeaves(tree, opts)
}

func buildTask(tree *state.Tree, n, parent *state.Node) Task {
	s := n.Summary
	task := Task{
		ID:           n.ID,
		Title:        n.Title(),
		Status:       n.Status(),
		ParentID:     parent.ID,
		ParentTitle:  parent.Title(),
		ParentStatus: parent.Status(),
	}
	if s != nil {
		task.Description = s.Description
		task.Duration = s.Duration
		task.Priority = s.Priority
		task.Dependencies = s.Dependencies
		task.Deliverables = s.Deliverables
	}
	if d := n.Doc; d != nil {
		if d.Description != "" {
			task.Description = d.Description
		}
		if !d.Duration.IsZero() {
			task.Duration = d.Duration
		}
		if !d.Priority.IsZero() {
			task.Priority = d.Priority
		}
		if len(d.Dependencies) > 0 {
			task.Dependencies = d.Dependencies
		}
		if len(d.Deliverables) > 0 {
			task.Deliverables = d.Deliverables
		}
	}
	task.Rank = task.Priority.Rank()

	for _, a := range tree.Ancestors(n.ID) {
		info := AncestorInfo{ID: a.ID, Title: a.Title(), Status: a.Status()}
		if a.Doc != nil {
			info.Description = a.Doc.Description
			info.Progress = a.Doc.Progress
		} else if a.Summary != nil {
			info.Description = a.Summary.Description
		}
		task.Ancestors = append(task.Ancestors, info)
	}
	return task
}

func dependenciesMet(tree *state.Tree, deps []types.PhaseID) bool {
	for _, dep := range deps {
		status, ok := tree.StatusOf(dep)
		if !ok || status != types.StatusCompleted {
			return false
		}
	}
	return true
}

func matches(task Task, filter string) bool {
	if filter == "" {
		return true
	}
	if strings.Contains(string(task.ID), filter) {
		return true
	}
	return strings.Contains(strings.ToLower(task.Description), strings.ToLower(filter))
}
