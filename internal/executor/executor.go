// Package executor dispatches ready tasks to the agent with bounded
// concurrency, validates the results and completes validated tasks.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/daydemir/gass/internal/cascade"
	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/llm"
	"github.com/daydemir/gass/internal/logging"
	"github.com/daydemir/gass/internal/prompts"
	"github.com/daydemir/gass/internal/resolver"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

// Defaults.
const (
	DefaultMaxParallel  = 5
	DefaultPollInterval = 2 * time.Second
	DefaultDelay        = 5 * time.Second
)

// Source yields ready tasks.
type Source interface {
	Ready(opts resolver.Options) ([]resolver.Task, error)
}

// Completer records a validated task as completed.
type Completer interface {
	SetStatus(id types.PhaseID, status types.Status) (*cascade.Result, error)
}

type planSource struct {
	store *state.PlanStore
}

// PlanSource resolves ready tasks from a plan store snapshot per call.
func PlanSource(store *state.PlanStore) Source {
	return &planSource{store: store}
}

func (p *planSource) Ready(opts resolver.Options) ([]resolver.Task, error) {
	return resolver.Load(p.store, opts)
}

// Config holds executor configuration
type Config struct {
	MaxParallel  int
	PollInterval time.Duration
	// Delay is the pause between batches in loop mode.
	Delay time.Duration
	// Scope and Filter narrow the tasks, see resolver.Options.
	Scope  types.PhaseID
	Filter string
	// Limit caps the tasks taken per batch; zero takes all.
	Limit int

	// WorkspaceDir holds prompt overrides.
	WorkspaceDir string
	Invoke       llm.InvokeOptions

	// Verdict decides validation pass/fail from the validator's text.
	Verdict Verdict
	// Wake, when set, ends an idle wait in loop mode early.
	Wake <-chan struct{}
	// OnOutcome is called from the control goroutine for each finished task.
	OnOutcome func(batchID string, o Outcome)
	// OnText receives agent output as it streams. It is called from task
	// goroutines concurrently.
	OnText func(id types.PhaseID, text string)
}

// Executor runs ready tasks through the agent.
type Executor struct {
	cfg       Config
	source    Source
	agent     llm.Agent
	validator llm.Agent
	completer Completer
	logger    *logging.Logger
}

// New creates an executor. agent executes tasks and validator reviews
// them; both are usually the same primary-then-fallback composite.
func New(cfg Config, source Source, agent, validator llm.Agent, completer Completer, logger *logging.Logger) *Executor {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Delay < 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Verdict == nil {
		cfg.Verdict = KeywordVerdict
	}
	if validator == nil {
		validator = agent
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Executor{
		cfg:       cfg,
		source:    source,
		agent:     agent,
		validator: validator,
		completer: completer,
		logger:    logger,
	}
}

// RunBatch executes the currently ready tasks with at most MaxParallel
// in flight. Tasks are dispatched in priority order from this goroutine
// only; each poll re-queries the source for newly unblocked tasks,
// excluding every id already claimed in this batch. Cancelling ctx stops
// dispatching, waits for in-flight tasks and returns the partial summary.
func (e *Executor) RunBatch(ctx context.Context) (*Summary, error) {
	start := time.Now()
	batchID := uuid.NewString()
	log := e.logger.WithBatch(batchID)
	summary := &Summary{Batches: 1}

	claimed := make(map[types.PhaseID]bool)
	queue, err := e.ready(claimed)
	if err != nil {
		return summary, err
	}
	log.Info("batch started", "ready", len(queue), "max_parallel", e.cfg.MaxParallel)

	sem := semaphore.NewWeighted(int64(e.cfg.MaxParallel))
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	done := make(chan Outcome)
	inflight := 0
	taken := 0

	record := func(o Outcome) {
		inflight--
		sem.Release(1)
		summary.add(o)
		log.Info("task finished", "phase_id", string(o.Task.ID), "result", o.Result(), "elapsed", o.Elapsed.Round(time.Millisecond).String())
		if e.cfg.OnOutcome != nil {
			e.cfg.OnOutcome(batchID, o)
		}
	}

	for {
		for len(queue) > 0 && ctx.Err() == nil && !e.limitReached(taken) && sem.TryAcquire(1) {
			task := queue[0]
			queue = queue[1:]
			claimed[task.ID] = true
			inflight++
			taken++
			log.Debug("task dispatched", "phase_id", string(task.ID), "rank", task.Rank)
			go func() {
				done <- e.runTask(ctx, task)
			}()
		}

		if inflight == 0 {
			if ctx.Err() != nil || e.limitReached(taken) {
				break
			}
			if queue = e.refresh(log, claimed, queue); len(queue) == 0 {
				break
			}
			continue
		}

		select {
		case o := <-done:
			record(o)
		case <-ticker.C:
			if ctx.Err() == nil && !e.limitReached(taken) {
				queue = e.refresh(log, claimed, queue)
			}
		case <-ctx.Done():
			for inflight > 0 {
				record(<-done)
			}
		}
	}

	summary.Elapsed = time.Since(start)
	log.Info("batch finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"validated", summary.Validated,
		"needs_revision", summary.NeedsRevision,
	)
	return summary, nil
}

// Loop runs batches until ctx is cancelled, pausing Delay between them.
// Task failures never stop it. An error from the first batch is returned
// since it means the run is misconfigured; later errors are logged.
// Cancellation is a normal stop and yields the summary of all batches.
func (e *Executor) Loop(ctx context.Context, onBatch func(batch, total *Summary)) (*Summary, error) {
	total := &Summary{}
	start := time.Now()
	for n := 1; ; n++ {
		batch, err := e.RunBatch(ctx)
		if err != nil {
			if n == 1 {
				return total, err
			}
			e.logger.Error("batch failed", "error", err)
		}
		total.merge(batch)
		total.Elapsed = time.Since(start)
		if onBatch != nil {
			onBatch(batch, total)
		}
		if ctx.Err() != nil {
			return total, nil
		}

		if !e.wait(ctx, batch.Total == 0) {
			total.Elapsed = time.Since(start)
			return total, nil
		}
	}
}

// wait pauses for Delay. An idle executor also wakes on a plan change.
// It returns false when ctx is cancelled.
func (e *Executor) wait(ctx context.Context, idle bool) bool {
	timer := time.NewTimer(e.cfg.Delay)
	defer timer.Stop()

	var wake <-chan struct{}
	if idle {
		wake = e.cfg.Wake
	}
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-wake:
		e.logger.Debug("plan changed, waking early")
	}
	return true
}

func (e *Executor) limitReached(taken int) bool {
	return e.cfg.Limit > 0 && taken >= e.cfg.Limit
}

func (e *Executor) ready(claimed map[types.PhaseID]bool) ([]resolver.Task, error) {
	return e.source.Ready(resolver.Options{
		Scope:   e.cfg.Scope,
		Filter:  e.cfg.Filter,
		Exclude: claimed,
	})
}

func (e *Executor) refresh(log *logging.Logger, claimed map[types.PhaseID]bool, current []resolver.Task) []resolver.Task {
	queue, err := e.ready(claimed)
	if err != nil {
		log.Warn("failed to refresh ready tasks", "error", err)
		return current
	}
	return queue
}

// runTask executes one task: agent call (with fallback inside the
// agent), validation call, then completion on a passing verdict.
func (e *Executor) runTask(ctx context.Context, task resolver.Task) Outcome {
	start := time.Now()
	o := Outcome{Task: task}
	log := e.logger.WithPhase(string(task.ID))

	opts := e.cfg.Invoke
	if e.cfg.OnText != nil {
		opts.OnText = func(text string) { e.cfg.OnText(task.ID, text) }
	}

	prompt, err := prompts.Render(e.cfg.WorkspaceDir, prompts.Task, task)
	if err != nil {
		o.Err = err
		o.Elapsed = time.Since(start)
		return o
	}
	res, err := e.agent.Invoke(ctx, prompt, opts)
	if err != nil {
		o.Err = errors.NewAgentError(e.agent.Name(), err)
		log.Warn("task failed", "error", err)
		o.Elapsed = time.Since(start)
		return o
	}
	o.Executed = true
	o.Output = res.Text()

	vprompt, err := prompts.Render(e.cfg.WorkspaceDir, prompts.Validate, task)
	if err == nil {
		var vres *llm.Result
		vres, err = e.validator.Invoke(ctx, vprompt, e.cfg.Invoke)
		if err == nil {
			o.Feedback = vres.Text()
		}
	}
	if err != nil {
		o.Indeterminate = true
		o.Err = fmt.Errorf("%w: %v", errors.ErrValidationIndeterminate, err)
		log.Warn("validation indeterminate, leaving status unchanged", "error", err)
		o.Elapsed = time.Since(start)
		return o
	}

	if !e.cfg.Verdict(o.Feedback) {
		o.NeedsRevision = true
		log.Info("task needs revision")
		o.Elapsed = time.Since(start)
		return o
	}

	o.Validated = true
	cascaded, err := e.completer.SetStatus(task.ID, types.StatusCompleted)
	if err != nil {
		o.StatusErr = err
		log.Error("failed to mark task completed", "error", err)
	} else if cascaded != nil {
		o.AutoCompleted = cascaded.AutoCompleted()
	}
	o.Elapsed = time.Since(start)
	return o
}
