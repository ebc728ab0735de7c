package breakdown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/daydemir/gass/internal/types"
)

// CheckpointVersion is written into every saved checkpoint.
const CheckpointVersion = "1"

// CheckpointFileName is the checkpoint file inside the workspace dir.
const CheckpointFileName = ".breakdown_loop_state.json"

// Checkpoint is the resumable state of the breakdown loop.
type Checkpoint struct {
	Version     string    `json:"version" yaml:"version"`
	OperationID string    `json:"operationId" yaml:"operationId"`
	Completed   []string  `json:"completedPhases" yaml:"completedPhases"`
	Failed      []string  `json:"failedPhases" yaml:"failedPhases"`
	Iteration   int       `json:"currentIteration" yaml:"currentIteration"`
	LastUpdated time.Time `json:"lastUpdated" yaml:"lastUpdated"`
}

// NewCheckpoint creates an empty checkpoint with a fresh operation id.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Version:     CheckpointVersion,
		OperationID: uuid.NewString(),
		Completed:   []string{},
		Failed:      []string{},
	}
}

// IsCompleted reports whether id is recorded as completed.
func (c *Checkpoint) IsCompleted(id types.PhaseID) bool {
	return slices.Contains(c.Completed, string(id))
}

// IsFailed reports whether id is recorded as failed.
func (c *Checkpoint) IsFailed(id types.PhaseID) bool {
	return slices.Contains(c.Failed, string(id))
}

// MarkCompleted records id as completed and clears any failure.
func (c *Checkpoint) MarkCompleted(id types.PhaseID) {
	c.Failed = remove(c.Failed, string(id))
	c.Completed = insert(c.Completed, string(id))
}

// MarkFailed records id as failed.
func (c *Checkpoint) MarkFailed(id types.PhaseID) {
	c.Completed = remove(c.Completed, string(id))
	c.Failed = insert(c.Failed, string(id))
}

// Clone returns a deep copy.
func (c *Checkpoint) Clone() *Checkpoint {
	out := *c
	out.Completed = slices.Clone(c.Completed)
	out.Failed = slices.Clone(c.Failed)
	return &out
}

func insert(set []string, id string) []string {
	if slices.Contains(set, id) {
		return set
	}
	set = append(set, id)
	slices.SortFunc(set, func(a, b string) int {
		return types.CompareIDs(types.PhaseID(a), types.PhaseID(b))
	})
	return set
}

func remove(set []string, id string) []string {
	return slices.DeleteFunc(set, func(s string) bool { return s == id })
}

// CheckpointStore persists the loop checkpoint.
type CheckpointStore interface {
	// Load returns the saved checkpoint, or nil when none exists.
	Load() (*Checkpoint, error)
	Save(cp *Checkpoint) error
	Clear() error
}

// FileCheckpointStore keeps the checkpoint in one JSON file.
type FileCheckpointStore struct {
	path string
}

// NewFileCheckpointStore stores the checkpoint under dir.
func NewFileCheckpointStore(dir string) *FileCheckpointStore {
	return &FileCheckpointStore{path: filepath.Join(dir, CheckpointFileName)}
}

// Path returns the checkpoint file path.
func (s *FileCheckpointStore) Path() string {
	return s.path
}

// Load reads the checkpoint. A missing file is a fresh start, not an error.
func (s *FileCheckpointStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", s.path, err)
	}
	if cp.Completed == nil {
		cp.Completed = []string{}
	}
	if cp.Failed == nil {
		cp.Failed = []string{}
	}
	return &cp, nil
}

// Save writes the checkpoint atomically.
func (s *FileCheckpointStore) Save(cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint is nil")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint file.
func (s *FileCheckpointStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// MemoryCheckpointStore keeps the checkpoint in memory.
type MemoryCheckpointStore struct {
	cp    *Checkpoint
	saves int
}

func (m *MemoryCheckpointStore) Load() (*Checkpoint, error) {
	if m.cp == nil {
		return nil, nil
	}
	return m.cp.Clone(), nil
}

func (m *MemoryCheckpointStore) Save(cp *Checkpoint) error {
	m.cp = cp.Clone()
	m.saves++
	return nil
}

func (m *MemoryCheckpointStore) Clear() error {
	m.cp = nil
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryCheckpointStore) Saves() int {
	return m.saves
}
