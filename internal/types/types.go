package types

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// PhaseID is a dotted hierarchical identifier such as "2.1.3".
// Plan files sometimes carry top-level ids as JSON numbers; both forms decode.
type PhaseID string

// UnmarshalJSON accepts a JSON string or number.
func (id *PhaseID) UnmarshalJSON(data []byte) error {
	value, _, err := scalarText(data)
	if err != nil {
		return fmt.Errorf("phase id: %w", err)
	}
	*id = PhaseID(strings.TrimSpace(value))
	return nil
}

func (id PhaseID) String() string {
	return string(id)
}

// Parent returns the id with its last dot-segment removed.
// ok is false for a top-level id.
func (id PhaseID) Parent() (PhaseID, bool) {
	i := strings.LastIndex(string(id), ".")
	if i <= 0 {
		return "", false
	}
	return id[:i], true
}

// Depth is the number of dot-segments in the id.
func (id PhaseID) Depth() int {
	if id == "" {
		return 0
	}
	return strings.Count(string(id), ".") + 1
}

// ChildSummary is a parent's cached copy of an immediate child.
// When the child has its own document, that document is authoritative.
type ChildSummary struct {
	ID           PhaseID   `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Duration     Duration  `json:"duration,omitzero"`
	Status       Status    `json:"status,omitempty"`
	Priority     Priority  `json:"priority,omitzero"`
	Dependencies []PhaseID `json:"dependencies,omitempty"`
	Deliverables []any     `json:"deliverables,omitempty"`

	// Extra holds fields this package does not interpret, so that a
	// load/save cycle does not drop them.
	Extra map[string]json.RawMessage `json:"-"`
}

// PhaseNode is one stored plan document.
type PhaseNode struct {
	ID                PhaseID        `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	Status            Status         `json:"status,omitempty"`
	Duration          Duration       `json:"duration,omitzero"`
	Priority          Priority       `json:"priority,omitzero"`
	Dependencies      []PhaseID      `json:"dependencies,omitempty"`
	Deliverables      []any          `json:"deliverables,omitempty"`
	Phases            []ChildSummary `json:"phases,omitempty"`
	BreakdownComplete *bool          `json:"breakdown_complete,omitempty"`
	Progress          float64        `json:"progress,omitempty"`
	ExecutionPlan     map[string]any `json:"execution_plan,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// IsParent reports whether the node has been decomposed.
func (n *PhaseNode) IsParent() bool {
	return len(n.Phases) > 0
}

// BreakdownIncomplete reports an explicit breakdown_complete=false.
// An absent flag is not treated as incomplete.
func (n *PhaseNode) BreakdownIncomplete() bool {
	return n.BreakdownComplete != nil && !*n.BreakdownComplete
}

// Child returns the summary for id, or nil.
func (n *PhaseNode) Child(id PhaseID) *ChildSummary {
	for i := range n.Phases {
		if n.Phases[i].ID == id {
			return &n.Phases[i]
		}
	}
	return nil
}

// AllChildrenCompleted reports whether every child summary is completed.
// A node without children is never considered complete through its children.
func (n *PhaseNode) AllChildrenCompleted() bool {
	if len(n.Phases) == 0 {
		return false
	}
	for _, c := range n.Phases {
		if c.Status.OrPending() != StatusCompleted {
			return false
		}
	}
	return true
}

// Summary builds the child-summary view of a node.
func (n *PhaseNode) Summary() ChildSummary {
	return ChildSummary{
		ID:           n.ID,
		Title:        n.Title,
		Description:  n.Description,
		Duration:     n.Duration,
		Status:       n.Status,
		Priority:     n.Priority,
		Dependencies: n.Dependencies,
		Deliverables: n.Deliverables,
	}
}

// Index is the top-level plan document (phases.json).
type Index struct {
	Title  string         `json:"title,omitempty"`
	Phases []ChildSummary `json:"phases"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Validate checks the index is usable by the breakdown loop.
func (ix *Index) Validate() error {
	if ix.Phases == nil {
		return fmt.Errorf("phases.json: missing phases array")
	}
	for i, p := range ix.Phases {
		if p.ID == "" {
			return fmt.Errorf("phases.json: phases[%d].id: field is required", i)
		}
	}
	return nil
}

type phaseNodeJSON PhaseNode
type childSummaryJSON ChildSummary
type indexJSON Index

func (n PhaseNode) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(phaseNodeJSON(n), n.Extra)
}

func (n *PhaseNode) UnmarshalJSON(data []byte) error {
	var v phaseNodeJSON
	extra, err := unmarshalWithExtra(data, &v)
	if err != nil {
		return err
	}
	*n = PhaseNode(v)
	n.Extra = extra
	return nil
}

func (c ChildSummary) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(childSummaryJSON(c), c.Extra)
}

func (c *ChildSummary) UnmarshalJSON(data []byte) error {
	var v childSummaryJSON
	extra, err := unmarshalWithExtra(data, &v)
	if err != nil {
		return err
	}
	*c = ChildSummary(v)
	c.Extra = extra
	return nil
}

func (ix Index) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(indexJSON(ix), ix.Extra)
}

func (ix *Index) UnmarshalJSON(data []byte) error {
	var v indexJSON
	extra, err := unmarshalWithExtra(data, &v)
	if err != nil {
		return err
	}
	*ix = Index(v)
	ix.Extra = extra
	return nil
}

// unmarshalWithExtra decodes data into v and returns the object members
// that do not map to one of v's json fields.
func unmarshalWithExtra(data []byte, v any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	known := jsonFieldNames(reflect.TypeOf(v).Elem())
	for key := range raw {
		if known[key] {
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, exists := merged[key]; !exists {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

func jsonFieldNames(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		names[name] = true
	}
	return names
}
