// Package cascade propagates status through the plan tree: a forced
// status flows down to every descendant, and completion flows up to
// every ancestor whose children are all completed.
package cascade

import (
	"fmt"
	"strings"

	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/logging"
	"github.com/daydemir/gass/internal/types"
)

// Store is the persistence the cascader needs.
type Store interface {
	Load(id types.PhaseID) (*types.PhaseNode, error)
	Save(node *types.PhaseNode) error
	ListAll() ([]types.PhaseID, error)
	Lock() (func(), error)
}

// Change records one status write.
type Change struct {
	ID   types.PhaseID
	From types.Status
	To   types.Status
	// Auto is true for an upward auto-completion.
	Auto bool
	// SummaryOnly is true when the write went to the parent's child
	// summary because the phase has no document of its own.
	SummaryOnly bool
}

// Result lists the writes performed by one operation, in order.
type Result struct {
	Changes []Change
}

// AutoCompleted returns the ids completed by the upward cascade.
func (r *Result) AutoCompleted() []types.PhaseID {
	var ids []types.PhaseID
	for _, c := range r.Changes {
		if c.Auto {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Cascader applies status changes. Every exported operation holds the
// store lock for its whole duration, so concurrent callers completing
// sibling tasks cannot lose each other's summary updates.
type Cascader struct {
	store  Store
	logger *logging.Logger
}

// New creates a Cascader.
func New(store Store, logger *logging.Logger) *Cascader {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Cascader{store: store, logger: logger}
}

// SetStatus forces status onto id and every descendant, then, for
// completed, walks upward completing ancestors whose children are all
// completed. A phase without its own document is updated through its
// parent's child summary; only an id known to neither is NotFound.
func (c *Cascader) SetStatus(id types.PhaseID, status types.Status) (*Result, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("cannot set status of %s: invalid status %q", id, status)
	}

	unlock, err := c.store.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Result{}
	seen := make(map[types.PhaseID]bool)
	node, err := c.store.Load(id)
	switch {
	case errors.IsNotFound(err):
		if err := c.setSummaryOnly(id, status, res); err != nil {
			return res, err
		}
	case err != nil:
		return res, err
	default:
		if err := c.forceDown(node, status, res, seen); err != nil {
			return res, err
		}
		if err := c.refreshParent(id, status); err != nil {
			return res, err
		}
	}
	if err := c.forceDetached(id, status, res, seen); err != nil {
		return res, err
	}

	if status == types.StatusCompleted {
		if err := c.maybeCompleteParent(id, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// MaybeCompleteParent re-evaluates the ancestors of childID from an
// external trigger. The child's current status is read from its own
// document when it has one and refreshed into the parent's summary
// before the all-completed check. It never demotes a parent.
func (c *Cascader) MaybeCompleteParent(childID types.PhaseID) (*Result, error) {
	unlock, err := c.store.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Result{}
	child, err := c.store.Load(childID)
	switch {
	case errors.IsNotFound(err):
	case err != nil:
		return res, err
	default:
		if err := c.refreshParent(childID, child.Status.OrPending()); err != nil {
			return res, err
		}
	}
	return res, c.maybeCompleteParent(childID, res)
}

// forceDown writes status onto node and its child summaries, saves it,
// then recurses into every child that has its own document.
func (c *Cascader) forceDown(node *types.PhaseNode, status types.Status, res *Result, seen map[types.PhaseID]bool) error {
	seen[node.ID] = true
	from := node.Status
	node.Status = status
	for i := range node.Phases {
		node.Phases[i].Status = status
	}
	if err := c.store.Save(node); err != nil {
		return fmt.Errorf("cannot save phase %s: %w", node.ID, err)
	}
	res.Changes = append(res.Changes, Change{ID: node.ID, From: from, To: status})
	c.logger.Debug("status forced", "phase_id", string(node.ID), "from", string(from), "to", string(status))

	for _, child := range node.Phases {
		doc, err := c.store.Load(child.ID)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if err := c.forceDown(doc, status, res, seen); err != nil {
			return err
		}
	}
	return nil
}

// forceDetached forces the stored descendants of id that forceDown could
// not reach because an intermediate phase has no document, such as
// 2.1.1.json under a 2.1 that only exists as a summary.
func (c *Cascader) forceDetached(id types.PhaseID, status types.Status, res *Result, seen map[types.PhaseID]bool) error {
	ids, err := c.store.ListAll()
	if err != nil {
		return err
	}
	prefix := string(id) + "."
	for _, d := range ids {
		if seen[d] || !strings.HasPrefix(string(d), prefix) {
			continue
		}
		doc, err := c.store.Load(d)
		if err != nil {
			return err
		}
		if err := c.forceDown(doc, status, res, seen); err != nil {
			return err
		}
	}
	return nil
}

// setSummaryOnly handles a phase known only through its parent's summary.
func (c *Cascader) setSummaryOnly(id types.PhaseID, status types.Status, res *Result) error {
	parentID, ok := id.Parent()
	if !ok {
		return errors.NewNotFoundError(string(id))
	}
	parent, err := c.store.Load(parentID)
	if errors.IsNotFound(err) {
		return errors.NewNotFoundError(string(id))
	}
	if err != nil {
		return err
	}
	summary := parent.Child(id)
	if summary == nil {
		return errors.NewNotFoundError(string(id))
	}

	from := summary.Status
	summary.Status = status
	if err := c.store.Save(parent); err != nil {
		return fmt.Errorf("cannot save phase %s: %w", parentID, err)
	}
	res.Changes = append(res.Changes, Change{ID: id, From: from, To: status, SummaryOnly: true})
	c.logger.Debug("summary status set", "phase_id", string(id), "parent_id", string(parentID), "to", string(status))
	return nil
}

// refreshParent copies the child's status into the parent's cached summary.
func (c *Cascader) refreshParent(childID types.PhaseID, status types.Status) error {
	parentID, ok := childID.Parent()
	if !ok {
		return nil
	}
	parent, err := c.store.Load(parentID)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	summary := parent.Child(childID)
	if summary == nil || summary.Status == status {
		return nil
	}
	summary.Status = status
	if err := c.store.Save(parent); err != nil {
		return fmt.Errorf("cannot save phase %s: %w", parentID, err)
	}
	return nil
}

// maybeCompleteParent completes the parent of childID when every entry
// of the parent's phases array is completed, then continues upward.
// The caller has already refreshed the parent's summary of childID.
func (c *Cascader) maybeCompleteParent(childID types.PhaseID, res *Result) error {
	parentID, ok := childID.Parent()
	if !ok {
		return nil
	}
	parent, err := c.store.Load(parentID)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !parent.IsParent() || !parent.AllChildrenCompleted() || parent.Status == types.StatusCompleted {
		return nil
	}

	from := parent.Status
	parent.Status = types.StatusCompleted
	if err := c.store.Save(parent); err != nil {
		return fmt.Errorf("cannot save phase %s: %w", parentID, err)
	}
	res.Changes = append(res.Changes, Change{ID: parentID, From: from, To: types.StatusCompleted, Auto: true})
	c.logger.Info("phase auto-completed", "phase_id", string(parentID), "from", string(from))

	if err := c.refreshParent(parentID, types.StatusCompleted); err != nil {
		return err
	}
	return c.maybeCompleteParent(parentID, res)
}
