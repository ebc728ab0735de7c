package breakdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/logging"
	"github.com/daydemir/gass/internal/types"
	"github.com/daydemir/gass/internal/utils"
)

// DefaultMaxIterations caps the number of passes.
const DefaultMaxIterations = 100

// Store is the plan persistence the loop needs.
type Store interface {
	Load(id types.PhaseID) (*types.PhaseNode, error)
	Save(node *types.PhaseNode) error
	LoadIndex() (*types.Index, error)
	LoadAll() ([]*types.PhaseNode, error)
	Lock() (func(), error)
}

// Outcome is what happened to one phase in a pass.
type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Config tunes the loop.
type Config struct {
	MaxIterations int
	// Threshold is the duration in minutes above which a phase is decomposed.
	Threshold int
	// Deep also decomposes oversized nested phases, not only top-level ones.
	Deep bool
	// Parallel bounds concurrent generations within a pass.
	Parallel int
	// OutputDir receives a backup of every generated document. Empty
	// disables backups.
	OutputDir string
	// OnPhase is called after each phase is processed.
	OnPhase func(id types.PhaseID, outcome Outcome, err error)
}

// Report summarises a loop run.
type Report struct {
	OperationID string          `json:"operation_id"`
	Completed   []string        `json:"completed"`
	Failed      []string        `json:"failed"`
	Iteration   int             `json:"iteration"`
	CapHit      bool            `json:"cap_hit"`
	Generated   []types.PhaseID `json:"generated,omitempty"`
	Elapsed     time.Duration   `json:"elapsed"`
}

// Loop decomposes phases pass by pass until every candidate is settled.
type Loop struct {
	store       Store
	checkpoints CheckpointStore
	gen         Generator
	cfg         Config
	logger      *logging.Logger
	now         func() time.Time

	mu         sync.Mutex
	lastErrors map[types.PhaseID]string
	generated  []types.PhaseID
}

// NewLoop creates a Loop.
func NewLoop(store Store, checkpoints CheckpointStore, gen Generator, cfg Config, logger *logging.Logger) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = LoopThreshold
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Loop{
		store:       store,
		checkpoints: checkpoints,
		gen:         gen,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		lastErrors:  make(map[types.PhaseID]string),
	}
}

// Run loads the checkpoint and performs passes until convergence, the
// iteration cap, or cancellation. Hitting the cap returns an
// IterationCapError and leaves the checkpoint on disk; convergence
// clears it. A malformed index is returned before any work starts.
func (l *Loop) Run(ctx context.Context) (*Report, error) {
	start := l.now()

	index, err := l.store.LoadIndex()
	if err != nil {
		return nil, err
	}

	cp, err := l.checkpoints.Load()
	if err != nil {
		l.logger.Warn("failed to load checkpoint, starting fresh", "error", err)
		cp = nil
	}
	if cp == nil {
		cp = NewCheckpoint()
	}
	l.logger.Info("breakdown loop started",
		"operation_id", cp.OperationID,
		"phases", len(index.Phases),
		"completed", len(cp.Completed),
		"failed", len(cp.Failed),
		"iteration", cp.Iteration,
	)

	report := func(capHit bool) *Report {
		return &Report{
			OperationID: cp.OperationID,
			Completed:   append([]string(nil), cp.Completed...),
			Failed:      append([]string(nil), cp.Failed...),
			Iteration:   cp.Iteration,
			CapHit:      capHit,
			Generated:   l.generated,
			Elapsed:     l.now().Sub(start),
		}
	}

	for {
		candidates, err := l.candidates(index)
		if err != nil {
			return report(false), err
		}
		if err := l.pass(ctx, cp, candidates); err != nil {
			return report(false), err
		}

		cp.Iteration++
		if err := l.save(cp); err != nil {
			return report(false), err
		}

		candidates, err = l.candidates(index)
		if err != nil {
			return report(false), err
		}
		if allCompleted(cp, candidates) {
			l.logger.Info("breakdown converged", "iterations", cp.Iteration, "completed", len(cp.Completed))
			r := report(false)
			if err := l.checkpoints.Clear(); err != nil {
				return r, err
			}
			return r, nil
		}

		l.logger.Info("breakdown pass finished", "iteration", cp.Iteration, "completed", len(cp.Completed), "failed", len(cp.Failed))
		if cp.Iteration >= l.cfg.MaxIterations {
			l.logger.Error("breakdown iteration cap reached", "max", l.cfg.MaxIterations)
			r := report(true)
			return r, &errors.IterationCapError{Max: l.cfg.MaxIterations, Completed: r.Completed, Failed: r.Failed}
		}
	}
}

type candidate struct {
	phase types.ChildSummary
	deep  bool
}

// candidates returns the top-level phases and, in deep mode, every
// child summary of a stored document.
func (l *Loop) candidates(index *types.Index) ([]candidate, error) {
	out := make([]candidate, 0, len(index.Phases))
	seen := make(map[types.PhaseID]bool)
	for _, p := range index.Phases {
		out = append(out, candidate{phase: p})
		seen[p.ID] = true
	}
	if !l.cfg.Deep {
		return out, nil
	}

	docs, err := l.store.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		for _, child := range doc.Phases {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			out = append(out, candidate{phase: child, deep: true})
		}
	}
	return out, nil
}

func allCompleted(cp *Checkpoint, candidates []candidate) bool {
	for _, c := range candidates {
		if !cp.IsCompleted(c.phase.ID) {
			return false
		}
	}
	return true
}

// pass processes every candidate not yet completed. Per-phase failures
// are recorded in the checkpoint and never abort the pass.
func (l *Loop) pass(ctx context.Context, cp *Checkpoint, candidates []candidate) error {
	var g errgroup.Group
	g.SetLimit(l.cfg.Parallel)

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		l.mu.Lock()
		done := cp.IsCompleted(c.phase.ID)
		l.mu.Unlock()
		if done {
			continue
		}
		g.Go(func() error {
			l.process(ctx, cp, c)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if saveErr := l.save(cp); saveErr != nil {
			return errors.Join(err, saveErr)
		}
		return err
	}
	return nil
}

func (l *Loop) process(ctx context.Context, cp *Checkpoint, c candidate) {
	if ctx.Err() != nil {
		return
	}
	id := c.phase.ID
	log := l.logger.WithPhase(string(id))

	outcome, err := l.generate(ctx, cp, c)

	l.mu.Lock()
	defer l.mu.Unlock()
	switch outcome {
	case OutcomeFailed:
		cp.MarkFailed(id)
		l.lastErrors[id] = promptErrors(err)
		log.Warn("breakdown failed", "error", err)
	case OutcomeGenerated:
		cp.MarkCompleted(id)
		delete(l.lastErrors, id)
		l.generated = append(l.generated, id)
		log.Info("breakdown generated")
	default:
		cp.MarkCompleted(id)
		log.Debug("no breakdown needed")
	}
	if saveErr := l.save(cp); saveErr != nil {
		log.Error("failed to save checkpoint", "error", saveErr)
	}
	if l.cfg.OnPhase != nil {
		l.cfg.OnPhase(id, outcome, err)
	}
}

func (l *Loop) generate(ctx context.Context, cp *Checkpoint, c candidate) (Outcome, error) {
	id := c.phase.ID

	doc, err := l.store.Load(id)
	if errors.IsNotFound(err) {
		doc, err = nil, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	l.mu.Lock()
	failed := cp.IsFailed(id)
	prevErrors := l.lastErrors[id]
	l.mu.Unlock()

	need := NeedsBreakdown
	if c.deep {
		need = needsDeepBreakdown
	}
	if !need(c.phase, doc, failed, l.cfg.Threshold) {
		return OutcomeSkipped, nil
	}

	req := RequestFor(c.phase)
	if doc != nil && req.Description == "" {
		req.Description = doc.Description
	}
	req.Errors = prevErrors

	node, err := l.gen.Generate(ctx, req)
	if err != nil {
		return OutcomeFailed, err
	}
	node.ID = id
	if node.Status == "" {
		if doc != nil && doc.Status != "" {
			node.Status = doc.Status
		} else {
			node.Status = c.phase.Status.OrPending()
		}
	}

	if err := l.saveDoc(node); err != nil {
		return OutcomeFailed, err
	}
	if err := l.backup(node); err != nil {
		l.logger.WithPhase(string(id)).Warn("failed to write backup", "error", err)
	}
	return OutcomeGenerated, nil
}

func (l *Loop) saveDoc(node *types.PhaseNode) error {
	unlock, err := l.store.Lock()
	if err != nil {
		return err
	}
	defer unlock()
	return l.store.Save(node)
}

func (l *Loop) backup(node *types.PhaseNode) error {
	if l.cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.cfg.OutputDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return err
	}
	path := utils.BackupPath(l.cfg.OutputDir, string(node.ID), node.Title, l.now())
	return os.WriteFile(path, data, 0644)
}

func (l *Loop) save(cp *Checkpoint) error {
	cp.LastUpdated = l.now().UTC()
	if err := l.checkpoints.Save(cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
