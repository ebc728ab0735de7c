package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/types"
)

// IndexFileName is the top-level plan document. It is not a phase
// document and is excluded from ListAll.
const IndexFileName = "phases.json"

// PlanStore reads and writes one JSON document per phase id in a
// directory. Nothing is cached: every Load re-reads the file, so a save
// from another process is visible immediately.
type PlanStore struct {
	dir  string
	lock *FileLock
}

// NewPlanStore returns a store rooted at dir. The directory is created
// on first Save.
func NewPlanStore(dir string) *PlanStore {
	return &PlanStore{
		dir:  dir,
		lock: NewFileLock(dir),
	}
}

// Dir returns the plan directory.
func (s *PlanStore) Dir() string {
	return s.dir
}

// Path returns the document path for id.
func (s *PlanStore) Path(id types.PhaseID) string {
	return filepath.Join(s.dir, string(id)+".json")
}

// Lock serialises read-modify-write sequences across goroutines and
// processes. The returned function releases the lock.
func (s *PlanStore) Lock() (func(), error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create plan directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("cannot lock plan directory: %w", err)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// Load reads the document for id. A missing file yields a NotFoundError.
func (s *PlanStore) Load(id types.PhaseID) (*types.PhaseNode, error) {
	file, err := os.Open(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(string(id))
		}
		return nil, fmt.Errorf("cannot open phase %s: %w", id, err)
	}
	defer file.Close()

	var node types.PhaseNode
	if err := json.NewDecoder(file).Decode(&node); err != nil {
		return nil, fmt.Errorf("cannot decode phase %s: %w", id, err)
	}
	if node.ID == "" {
		node.ID = id
	}
	return &node, nil
}

// Exists reports whether a document is stored for id.
func (s *PlanStore) Exists(id types.PhaseID) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Save writes the document for node.ID atomically.
func (s *PlanStore) Save(node *types.PhaseNode) error {
	if node.ID == "" {
		return fmt.Errorf("cannot save phase: id is required")
	}
	if node.Status != "" && !node.Status.IsValid() {
		return fmt.Errorf("cannot save phase %s: invalid status %q, must be one of: %v", node.ID, node.Status, types.AllStatuses())
	}
	return writeJSON(s.dir, s.Path(node.ID), node)
}

// ListAll returns the ids of every stored phase document in natural order.
// Hidden files such as the breakdown checkpoint are not phase documents.
func (s *PlanStore) ListAll() ([]types.PhaseID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read plan directory: %w", err)
	}

	var ids []types.PhaseID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == IndexFileName || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, types.PhaseID(strings.TrimSuffix(name, ".json")))
	}

	sort.Slice(ids, func(i, j int) bool {
		return types.CompareIDs(ids[i], ids[j]) < 0
	})
	return ids, nil
}

// LoadAll loads every stored document. A document that fails to decode
// aborts the load.
func (s *PlanStore) LoadAll() ([]*types.PhaseNode, error) {
	ids, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	nodes := make([]*types.PhaseNode, 0, len(ids))
	for _, id := range ids {
		node, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// LoadIndex reads phases.json. A missing or malformed index is a
// configuration error, reported as ErrInvalidIndex.
func (s *PlanStore) LoadIndex() (*types.Index, error) {
	path := filepath.Join(s.dir, IndexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", errors.ErrInvalidIndex, path, err)
	}

	var index types.Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%w: cannot decode %s: %v", errors.ErrInvalidIndex, path, err)
	}
	if err := index.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidIndex, err)
	}
	return &index, nil
}

// HasIndex reports whether phases.json exists.
func (s *PlanStore) HasIndex() bool {
	_, err := os.Stat(filepath.Join(s.dir, IndexFileName))
	return err == nil
}

// SaveIndex writes phases.json atomically.
func (s *PlanStore) SaveIndex(index *types.Index) error {
	if err := index.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid index: %w", err)
	}
	return writeJSON(s.dir, filepath.Join(s.dir, IndexFileName), index)
}

// writeJSON marshals v with indentation and writes it via temp file + rename.
func writeJSON(dir, path string, v any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("cannot write temp file for %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("cannot rename temp file for %s: %w", filepath.Base(path), err)
	}
	return nil
}
