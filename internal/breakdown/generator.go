package breakdown

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/llm"
	"github.com/daydemir/gass/internal/prompts"
	"github.com/daydemir/gass/internal/types"
)

// Request describes one phase to decompose.
type Request struct {
	ID           types.PhaseID
	Title        string
	Description  string
	Duration     types.Duration
	Priority     types.Priority
	Dependencies []types.PhaseID
	// Errors are the schema problems of the previous attempt, formatted
	// for the prompt. Empty on a first attempt.
	Errors string
}

// RequestFor builds the request for a phase summary.
func RequestFor(p types.ChildSummary) Request {
	return Request{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Duration:     p.Duration,
		Priority:     p.Priority,
		Dependencies: p.Dependencies,
	}
}

// Generator produces a decomposition for a phase.
type Generator interface {
	Generate(ctx context.Context, req Request) (*types.PhaseNode, error)
}

// AgentGenerator asks an agent for the decomposition.
type AgentGenerator struct {
	Agent        llm.Agent
	Options      llm.InvokeOptions
	WorkspaceDir string
}

// Generate renders the breakdown prompt, invokes the agent and parses
// and checks its JSON answer. Rejected output is a SchemaError.
func (g *AgentGenerator) Generate(ctx context.Context, req Request) (*types.PhaseNode, error) {
	prompt, err := prompts.Render(g.WorkspaceDir, prompts.Breakdown, req)
	if err != nil {
		return nil, err
	}

	res, err := g.Agent.Invoke(ctx, prompt, g.Options)
	if err != nil {
		return nil, errors.NewAgentError(g.Agent.Name(), err)
	}
	return ParseGenerated(req.ID, res.Text())
}

// ParseGenerated extracts and checks a generated decomposition for id.
func ParseGenerated(id types.PhaseID, text string) (*types.PhaseNode, error) {
	data, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, &errors.SchemaError{ID: string(id), Reasons: []string{err.Error()}}
	}

	var node types.PhaseNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, &errors.SchemaError{ID: string(id), Reasons: []string{"not a phase document"}, Err: err}
	}
	if node.ID == "" {
		node.ID = id
	}
	if err := CheckGenerated(id, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// CheckGenerated applies the minimal shape check and requires every
// child id to extend id by one segment.
func CheckGenerated(id types.PhaseID, node *types.PhaseNode) error {
	verrs := types.ValidatePhaseData(node)
	if node.ID != id {
		verrs.Add("id", string(id), string(node.ID), "Use the id of the phase being broken down")
	}
	for i, child := range node.Phases {
		parent, ok := child.ID.Parent()
		if child.ID != "" && (!ok || parent != id) {
			verrs.Add(fmt.Sprintf("phases[%d].id", i), "an id of the form "+string(id)+".N", string(child.ID), "Extend the parent id by one segment")
		}
		if child.Status != "" && !child.Status.IsValid() {
			verrs.Add(fmt.Sprintf("phases[%d].status", i), "pending, in-progress or completed", string(child.Status), "Use a known status")
		}
	}
	if !verrs.HasErrors() {
		return nil
	}
	return &errors.SchemaError{ID: string(id), Reasons: reasons(verrs), Err: verrs}
}

func reasons(verrs *types.ValidationErrors) []string {
	out := make([]string, 0, len(verrs.Errors))
	for _, e := range verrs.Errors {
		out = append(out, e.Field+": "+e.Message)
	}
	return out
}

// promptErrors formats a schema rejection for the retry prompt.
func promptErrors(err error) string {
	var verrs *types.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.ToPrompt()
	}
	var schemaErr *errors.SchemaError
	if !errors.As(err, &schemaErr) {
		return ""
	}
	var b strings.Builder
	for _, r := range schemaErr.Reasons {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
