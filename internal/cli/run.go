package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daydemir/gass/internal/cascade"
	"github.com/daydemir/gass/internal/display"
	"github.com/daydemir/gass/internal/executor"
	"github.com/daydemir/gass/internal/history"
	"github.com/daydemir/gass/internal/logging"
	"github.com/daydemir/gass/internal/logs"
	"github.com/daydemir/gass/internal/types"
)

var (
	runMaxParallel int
	runFilter      string
	runPhase       string
	runLimit       int
	runLoop        bool
	runDelay       int
	runQuiet       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute ready tasks with Claude Code",
	Long: `Execute ready tasks with Claude Code, several at a time.

Each task is executed, then reviewed by a validation call. Tasks that
pass validation are marked completed, and parents whose children are
all completed are completed with them. Tasks that fail validation stay
pending for another attempt.

Single batch (default):
  gass run
  gass run --max-parallel 3 --filter api

  Runs every task that is ready, plus tasks that become ready while the
  batch is running, then stops.

Continuous:
  gass run --loop
  gass run --loop --delay 30

  Runs batch after batch until interrupted. An idle loop also wakes
  up when the plan changes on disk.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		agent, err := a.agent()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := executor.Config{
			MaxParallel:  a.cfg.Executor.MaxParallel,
			PollInterval: a.cfg.Executor.PollInterval,
			Delay:        a.cfg.Executor.LoopDelay,
			Scope:        types.PhaseID(runPhase),
			Filter:       runFilter,
			Limit:        runLimit,
			WorkspaceDir: a.promptsDir(),
			Invoke:       a.invokeOptions(),
		}
		if runMaxParallel > 0 {
			cfg.MaxParallel = runMaxParallel
		}
		if runDelay >= 0 {
			cfg.Delay = time.Duration(runDelay) * time.Second
		}

		d := a.display
		rec := newRunRecorder(a.openHistory(), a.logger)
		defer rec.close()
		transcripts := logs.NewTranscripts(a.outputDir())

		cfg.OnOutcome = func(batchID string, o executor.Outcome) {
			rec.outcome(batchID, o)
			writeTranscript(transcripts, a.logger, batchID, o)
			showOutcome(d, o)
		}
		if !runQuiet {
			cfg.OnText = func(id types.PhaseID, text string) {
				d.Agent(string(id), text)
			}
		}

		if runLoop {
			wake, stopWatch, err := executor.WatchPlan(a.planDir(), a.logger)
			if err != nil {
				a.logger.Warn("plan watcher unavailable, polling only", "error", err)
			} else {
				defer stopWatch()
				cfg.Wake = wake
			}
		}

		cascader := cascade.New(a.store, a.logger)
		exec := executor.New(cfg, executor.PlanSource(a.store), agent, agent, cascader, a.logger)

		d.Box("GASS",
			fmt.Sprintf("Plan:         %s", a.planDir()),
			fmt.Sprintf("Max parallel: %d", cfg.MaxParallel),
			fmt.Sprintf("Mode:         %s", runMode(cfg)),
		)

		if !runLoop {
			summary, err := exec.RunBatch(ctx)
			rec.finish(summary)
			if err != nil {
				return err
			}
			showSummary(d, "Batch complete", summary)
			if summary.Total == 0 {
				d.Warning("No tasks are ready. Run 'gass tasks' or 'gass status list' to see why.")
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d tasks failed", summary.Failed, summary.Total)
			}
			return nil
		}

		total, err := exec.Loop(ctx, func(batch, total *executor.Summary) {
			rec.finish(batch)
			if batch.Total > 0 {
				d.Iteration("Batch", total.Batches, 0)
				showSummary(d, "Batch complete", batch)
			}
		})
		if err != nil {
			return err
		}
		d.SectionBreak()
		showSummary(d, "Loop stopped", total)
		return nil
	},
}

func runMode(cfg executor.Config) string {
	var parts []string
	if runLoop {
		parts = append(parts, fmt.Sprintf("loop (delay %s)", cfg.Delay))
	} else {
		parts = append(parts, "single batch")
	}
	if cfg.Scope != "" {
		parts = append(parts, "phase "+string(cfg.Scope))
	}
	if cfg.Filter != "" {
		parts = append(parts, fmt.Sprintf("filter %q", cfg.Filter))
	}
	if cfg.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit %d", cfg.Limit))
	}
	return strings.Join(parts, ", ")
}

func showOutcome(d *display.Display, o executor.Outcome) {
	label := fmt.Sprintf("%s %s", o.Task.ID, display.Truncate(o.Task.Title, 50))
	elapsed := o.Elapsed.Round(time.Second)
	switch o.Result() {
	case "failed":
		d.Error(fmt.Sprintf("%s failed after %s: %v", label, elapsed, o.Err))
	case "indeterminate":
		d.Warning(fmt.Sprintf("%s executed but could not be validated; status unchanged", label))
	case "needs-revision":
		d.Warning(fmt.Sprintf("%s needs revision: %s", label, display.Truncate(o.Feedback, 80)))
	default:
		d.Success(fmt.Sprintf("%s completed in %s", label, elapsed))
		if o.StatusErr != nil {
			d.Error(fmt.Sprintf("%s could not be marked completed: %v", o.Task.ID, o.StatusErr))
		}
		for _, id := range o.AutoCompleted {
			d.Resume(fmt.Sprintf("%s auto-completed", id))
		}
	}
}

func writeTranscript(t *logs.Transcripts, logger *logging.Logger, batchID string, o executor.Outcome) {
	entry := logs.Entry{
		PhaseID:  string(o.Task.ID),
		Title:    o.Task.Title,
		RunID:    batchID,
		Result:   o.Result(),
		Started:  time.Now().Add(-o.Elapsed),
		Elapsed:  o.Elapsed,
		Output:   o.Output,
		Feedback: o.Feedback,
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}
	if path, err := t.Write(entry); err != nil {
		logger.Warn("failed to write transcript", "phase_id", entry.PhaseID, "error", err)
	} else {
		logger.Debug("transcript written", "phase_id", entry.PhaseID, "path", path)
	}
}

func showSummary(d *display.Display, title string, s *executor.Summary) {
	if s == nil {
		return
	}
	rows := []display.Row{
		{Label: "Tasks", Value: fmt.Sprint(s.Total)},
		{Label: "Validated", Value: fmt.Sprint(s.Validated)},
		{Label: "Needs revision", Value: fmt.Sprint(s.NeedsRevision)},
		{Label: "Indeterminate", Value: fmt.Sprint(s.Indeterminate)},
		{Label: "Failed", Value: fmt.Sprint(s.Failed)},
		{Label: "Duration", Value: s.Elapsed.Round(time.Second).String()},
	}
	if s.Batches > 1 {
		rows = append([]display.Row{{Label: "Batches", Value: fmt.Sprint(s.Batches)}}, rows...)
	}
	d.Summary(title, rows...)
	for _, f := range s.Failures {
		d.Error(fmt.Sprintf("%s: %s", f.ID, display.Truncate(f.Error, 100)))
	}
}

// runRecorder writes each batch to the history ledger. A batch becomes a
// run when its first task finishes, so empty polling batches leave no
// trace. A nil store records nothing.
type runRecorder struct {
	store  *history.Store
	logger *logging.Logger
	runID  string
}

func newRunRecorder(store *history.Store, logger *logging.Logger) *runRecorder {
	return &runRecorder{store: store, logger: logger}
}

func (r *runRecorder) outcome(batchID string, o executor.Outcome) {
	if r.store == nil {
		return
	}
	ctx := context.Background()
	if r.runID != batchID {
		if _, err := r.store.StartRun(ctx, batchID, history.KindBatch); err != nil {
			r.logger.Warn("failed to record run", "error", err)
			return
		}
		r.runID = batchID
	}

	detail := o.Feedback
	if o.Err != nil {
		detail = o.Err.Error()
	}
	if err := r.store.AddEvent(ctx, r.runID, string(o.Task.ID), o.Result(), display.Truncate(detail, 500), o.Elapsed); err != nil {
		r.logger.Warn("failed to record task", "phase_id", string(o.Task.ID), "error", err)
	}
}

func (r *runRecorder) finish(s *executor.Summary) {
	if r.store == nil || r.runID == "" || s == nil {
		return
	}
	note := ""
	if s.NeedsRevision > 0 || s.Indeterminate > 0 {
		note = fmt.Sprintf("%d need revision, %d indeterminate", s.NeedsRevision, s.Indeterminate)
	}
	err := r.store.FinishRun(context.Background(), r.runID, history.Totals{
		Total:     s.Total,
		Succeeded: s.Validated,
		Failed:    s.Failed,
		Note:      note,
	})
	if err != nil {
		r.logger.Warn("failed to finish run", "run_id", r.runID, "error", err)
	}
	r.runID = ""
}

func (r *runRecorder) close() {
	if r.store != nil {
		r.store.Close()
	}
}

func init() {
	runCmd.Flags().IntVarP(&runMaxParallel, "max-parallel", "j", 0, "maximum concurrent tasks (default from config)")
	runCmd.Flags().StringVarP(&runFilter, "filter", "f", "", "only tasks whose id or description contains this text")
	runCmd.Flags().StringVarP(&runPhase, "phase", "p", "", "only tasks directly under this phase")
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "maximum tasks per batch (0 for all)")
	runCmd.Flags().BoolVar(&runLoop, "loop", false, "keep running batches until interrupted")
	runCmd.Flags().IntVar(&runDelay, "delay", -1, "seconds between batches in loop mode (default from config)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "hide streamed agent output")
	rootCmd.AddCommand(runCmd)
}
