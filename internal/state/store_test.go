package state

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestPlanStoreSaveLoad(t *testing.T) {
	store := NewPlanStore(filepath.Join(t.TempDir(), "plan"))

	node := &types.PhaseNode{
		ID:       "2.1",
		Title:    "Auth",
		Status:   types.StatusInProgress,
		Duration: types.ParseDuration("45-90"),
		Priority: types.NamedPriority("high"),
		Phases: []types.ChildSummary{
			{ID: "2.1.1", Title: "Login", Status: types.StatusPending},
		},
	}
	if err := store.Save(node); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := store.Load("2.1")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Title != "Auth" || loaded.Status != types.StatusInProgress {
		t.Errorf("Load() = %+v, want title Auth status in-progress", loaded)
	}
	if loaded.Duration.String() != "45-90" {
		t.Errorf("Duration = %q, want %q", loaded.Duration, "45-90")
	}
	if len(loaded.Phases) != 1 || loaded.Phases[0].ID != "2.1.1" {
		t.Errorf("Phases = %+v, want one child 2.1.1", loaded.Phases)
	}

	if _, err := os.Stat(store.Path("2.1") + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after Save")
	}
}

func TestPlanStoreLoadMissing(t *testing.T) {
	store := NewPlanStore(t.TempDir())

	_, err := store.Load("9")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestPlanStoreSaveRejectsInvalidStatus(t *testing.T) {
	store := NewPlanStore(t.TempDir())

	err := store.Save(&types.PhaseNode{ID: "1", Title: "x", Status: "done"})
	if err == nil {
		t.Fatal("Save() expected error for invalid status")
	}
}

func TestPlanStoreListAllSkipsNonDocuments(t *testing.T) {
	dir := t.TempDir()
	store := NewPlanStore(dir)

	for _, name := range []string{"phases.json", "2.json", "10.json", "2.10.json", "2.9.json", "notes.txt", "3.json.tmp", ".breakdown_loop_state.json"} {
		writeFile(t, filepath.Join(dir, name), `{"title":"x"}`)
	}

	ids, err := store.ListAll()
	if err != nil {
		t.Fatalf("ListAll() error: %v", err)
	}
	want := []types.PhaseID{"2", "2.9", "2.10", "10"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ListAll() = %v, want %v", ids, want)
	}
}

func TestPlanStoreListAllMissingDir(t *testing.T) {
	store := NewPlanStore(filepath.Join(t.TempDir(), "absent"))

	ids, err := store.ListAll()
	if err != nil || len(ids) != 0 {
		t.Errorf("ListAll() = (%v, %v), want empty and no error", ids, err)
	}
}

func TestPlanStoreLoadIndex(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "valid with numeric ids", content: `{"phases":[{"id":1,"title":"Setup"},{"id":"2","title":"Build"}]}`},
		{name: "missing phases", content: `{"title":"plan"}`, wantErr: true},
		{name: "malformed", content: `{"phases":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, IndexFileName), tt.content)

			index, err := NewPlanStore(dir).LoadIndex()
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidIndex) {
					t.Errorf("LoadIndex() error = %v, want ErrInvalidIndex", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadIndex() error: %v", err)
			}
			if len(index.Phases) != 2 || index.Phases[0].ID != "1" {
				t.Errorf("LoadIndex() phases = %+v", index.Phases)
			}
		})
	}
}

func TestPlanStoreLockSerialises(t *testing.T) {
	store := NewPlanStore(t.TempDir())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := store.Lock()
			if err != nil {
				t.Errorf("Lock() error: %v", err)
				return
			}
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("lock held by %d goroutines at once, want 1", maxSeen)
	}
}
