package state

import (
	"sort"

	"github.com/daydemir/gass/internal/types"
)

// Node is one entry of a Tree. A node exists for every stored document
// and for every child summary found in a stored document or phases.json.
type Node struct {
	ID types.PhaseID

	// Doc is the node's own stored document, nil for summary-only nodes.
	Doc *types.PhaseNode
	// Summary is the parent's cached copy of this node, nil when no
	// document lists it.
	Summary *types.ChildSummary

	parent   int
	children []int
}

// HasDoc reports whether the node has its own stored document.
func (n *Node) HasDoc() bool {
	return n.Doc != nil
}

// Status returns the authoritative status: the node's own document if
// it has one, otherwise the summary held by its parent.
func (n *Node) Status() types.Status {
	if n.Doc != nil {
		return n.Doc.Status.OrPending()
	}
	if n.Summary != nil {
		return n.Summary.Status.OrPending()
	}
	return types.StatusPending
}

// Title returns the best known title.
func (n *Node) Title() string {
	if n.Doc != nil && n.Doc.Title != "" {
		return n.Doc.Title
	}
	if n.Summary != nil {
		return n.Summary.Title
	}
	return ""
}

// IsTrueLeaf reports whether the node has no further decomposition: no
// stored document of its own with a non-empty phases array.
func (n *Node) IsTrueLeaf() bool {
	return n.Doc == nil || !n.Doc.IsParent()
}

// Tree is an arena snapshot of the plan: nodes in a slice, parent and
// child links as slice indexes, lookups through an id index.
type Tree struct {
	nodes []Node
	index map[types.PhaseID]int
}

// BuildTree snapshots the store into a Tree. phases.json summaries are
// included when the index exists.
func BuildTree(s *PlanStore) (*Tree, error) {
	docs, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	var top []types.ChildSummary
	if s.HasIndex() {
		if index, err := s.LoadIndex(); err == nil {
			top = index.Phases
		}
	}
	return NewTree(docs, top), nil
}

// NewTree builds a Tree from documents and optional top-level summaries.
func NewTree(docs []*types.PhaseNode, top []types.ChildSummary) *Tree {
	t := &Tree{index: make(map[types.PhaseID]int)}

	for _, doc := range docs {
		t.add(doc.ID).Doc = doc
	}
	for i := range top {
		n := t.add(top[i].ID)
		if n.Summary == nil {
			n.Summary = &top[i]
		}
	}
	for _, doc := range docs {
		for i := range doc.Phases {
			t.add(doc.Phases[i].ID).Summary = &doc.Phases[i]
		}
	}

	// Link by dotted id. Intermediate ids with neither a document nor a
	// summary are not materialised; their descendants attach to the
	// nearest known ancestor.
	for i := range t.nodes {
		t.nodes[i].parent = -1
	}
	for i := range t.nodes {
		id := t.nodes[i].ID
		for {
			pid, ok := id.Parent()
			if !ok {
				break
			}
			if p, found := t.index[pid]; found {
				t.nodes[i].parent = p
				t.nodes[p].children = append(t.nodes[p].children, i)
				break
			}
			id = pid
		}
	}
	for i := range t.nodes {
		children := t.nodes[i].children
		sort.Slice(children, func(a, b int) bool {
			return types.CompareIDs(t.nodes[children[a]].ID, t.nodes[children[b]].ID) < 0
		})
	}
	return t
}

func (t *Tree) add(id types.PhaseID) *Node {
	if i, ok := t.index[id]; ok {
		return &t.nodes[i]
	}
	t.nodes = append(t.nodes, Node{ID: id, parent: -1})
	t.index[id] = len(t.nodes) - 1
	return &t.nodes[len(t.nodes)-1]
}

// Get returns the node for id.
func (t *Tree) Get(id types.PhaseID) (*Node, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return &t.nodes[i], true
}

// StatusOf resolves the status of id. ok is false for unknown ids.
func (t *Tree) StatusOf(id types.PhaseID) (types.Status, bool) {
	n, ok := t.Get(id)
	if !ok {
		return "", false
	}
	return n.Status(), true
}

// Parent returns the parent node of id.
func (t *Tree) Parent(id types.PhaseID) (*Node, bool) {
	i, ok := t.index[id]
	if !ok || t.nodes[i].parent < 0 {
		return nil, false
	}
	return &t.nodes[t.nodes[i].parent], true
}

// Children returns the child nodes of id in natural order.
func (t *Tree) Children(id types.PhaseID) []*Node {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(t.nodes[i].children))
	for _, c := range t.nodes[i].children {
		out = append(out, &t.nodes[c])
	}
	return out
}

// Ancestors returns the ancestors of id ordered root first, excluding id.
func (t *Tree) Ancestors(id types.PhaseID) []*Node {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	var chain []*Node
	for p := t.nodes[i].parent; p >= 0; p = t.nodes[p].parent {
		chain = append(chain, &t.nodes[p])
	}
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	return chain
}

// Roots returns nodes without a parent, in natural order.
func (t *Tree) Roots() []*Node {
	var roots []*Node
	for i := range t.nodes {
		if t.nodes[i].parent < 0 {
			roots = append(roots, &t.nodes[i])
		}
	}
	sort.Slice(roots, func(a, b int) bool {
		return types.CompareIDs(roots[a].ID, roots[b].ID) < 0
	})
	return roots
}

// Documents returns the nodes that have a stored document, in natural order.
func (t *Tree) Documents() []*Node {
	var out []*Node
	for i := range t.nodes {
		if t.nodes[i].Doc != nil {
			out = append(out, &t.nodes[i])
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return types.CompareIDs(out[a].ID, out[b].ID) < 0
	})
	return out
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}
