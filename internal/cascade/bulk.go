package cascade

import (
	"fmt"

	"github.com/daydemir/gass/internal/types"
)

// BulkStore is the persistence SetAll needs on top of Store.
type BulkStore interface {
	Store
	LoadAll() ([]*types.PhaseNode, error)
	HasIndex() bool
	LoadIndex() (*types.Index, error)
	SaveIndex(index *types.Index) error
}

// SetAll writes status onto every stored document, every child summary
// and every entry of the top-level index. It returns the number of
// documents written.
func SetAll(store BulkStore, status types.Status) (int, error) {
	if !status.IsValid() {
		return 0, fmt.Errorf("cannot set status: invalid status %q", status)
	}

	unlock, err := store.Lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	if store.HasIndex() {
		index, err := store.LoadIndex()
		if err != nil {
			return 0, err
		}
		for i := range index.Phases {
			index.Phases[i].Status = status
		}
		if err := store.SaveIndex(index); err != nil {
			return 0, err
		}
	}

	nodes, err := store.LoadAll()
	if err != nil {
		return 0, err
	}
	for _, node := range nodes {
		node.Status = status
		for i := range node.Phases {
			node.Phases[i].Status = status
		}
		if err := store.Save(node); err != nil {
			return 0, fmt.Errorf("cannot save phase %s: %w", node.ID, err)
		}
	}
	return len(nodes), nil
}
