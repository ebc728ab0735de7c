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

	"github.com/daydemir/gass/internal/breakdown"
	"github.com/daydemir/gass/internal/display"
	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/history"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

var (
	breakdownDeep          bool
	breakdownMaxIterations int
	breakdownThreshold     int
	breakdownParallel      int
	breakdownOutput        string
)

var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Decompose large phases into executable tasks",
	Long: `Decompose phases whose estimate is too large into smaller sub-phases.

Subcommands:
  gass breakdown run      Run the breakdown loop until every phase is settled
  gass breakdown status   Show the saved loop checkpoint
  gass breakdown reset    Discard the checkpoint and start over next time
  gass breakdown audit    List tasks still too large to execute in one go`,
}

var breakdownRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the breakdown loop",
	Long: `Run the breakdown loop over the top-level phases.

Each pass asks Claude Code to decompose every phase that is still too
large and has no sub-phases yet. Passes repeat until every phase is
settled. Progress is checkpointed after every phase, so an interrupted
or capped run resumes where it stopped.

With --deep, oversized sub-phases are decomposed as well.`,
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

		cfg := breakdown.Config{
			MaxIterations: a.cfg.Breakdown.MaxIterations,
			Threshold:     a.cfg.Breakdown.ThresholdMinutes,
			Deep:          a.cfg.Breakdown.Deep || breakdownDeep,
			Parallel:      a.cfg.Breakdown.Parallel,
			OutputDir:     a.outputDir(),
		}
		if breakdownMaxIterations > 0 {
			cfg.MaxIterations = breakdownMaxIterations
		}
		if breakdownThreshold > 0 {
			cfg.Threshold = breakdownThreshold
		}
		if breakdownParallel > 0 {
			cfg.Parallel = breakdownParallel
		}

		d := a.display
		h := a.openHistory()
		var runID string
		if h != nil {
			defer h.Close()
			if runID, err = h.StartRun(context.Background(), "", history.KindBreakdown); err != nil {
				a.logger.Warn("failed to record run", "error", err)
				runID = ""
			}
		}

		cfg.OnPhase = func(id types.PhaseID, outcome breakdown.Outcome, err error) {
			detail := ""
			switch outcome {
			case breakdown.OutcomeGenerated:
				d.Success(fmt.Sprintf("%s broken down", id))
			case breakdown.OutcomeSkipped:
				d.Info("Skipped", string(id))
			case breakdown.OutcomeFailed:
				detail = fmt.Sprint(err)
				d.Error(fmt.Sprintf("%s: %s", id, display.Truncate(detail, 100)))
			}
			if runID != "" {
				if err := h.AddEvent(context.Background(), runID, string(id), string(outcome), detail, 0); err != nil {
					a.logger.Warn("failed to record phase", "phase_id", string(id), "error", err)
				}
			}
		}

		gen := &breakdown.AgentGenerator{
			Agent:        agent,
			Options:      a.invokeOptions(),
			WorkspaceDir: a.promptsDir(),
		}
		checkpoints := breakdown.NewFileCheckpointStore(a.planDir())
		loop := breakdown.NewLoop(a.store, checkpoints, gen, cfg, a.logger)

		mode := "top-level phases"
		if cfg.Deep {
			mode = "all oversized phases"
		}
		d.Box("GASS BREAKDOWN",
			fmt.Sprintf("Plan:       %s", a.planDir()),
			fmt.Sprintf("Threshold:  %d minutes", cfg.Threshold),
			fmt.Sprintf("Scope:      %s", mode),
			fmt.Sprintf("Iterations: up to %d", cfg.MaxIterations),
		)

		report, err := loop.Run(ctx)
		if report != nil {
			if runID != "" {
				note := "operation " + report.OperationID
				if report.CapHit {
					note += ", iteration cap reached"
				}
				totals := history.Totals{
					Total:     len(report.Completed) + len(report.Failed),
					Succeeded: len(report.Completed),
					Failed:    len(report.Failed),
					Note:      note,
				}
				if ferr := h.FinishRun(context.Background(), runID, totals); ferr != nil {
					a.logger.Warn("failed to finish run", "run_id", runID, "error", ferr)
				}
			}
			d.Summary("Breakdown",
				display.Row{Label: "Iterations", Value: fmt.Sprint(report.Iteration)},
				display.Row{Label: "Settled", Value: fmt.Sprint(len(report.Completed))},
				display.Row{Label: "Generated", Value: fmt.Sprint(len(report.Generated))},
				display.Row{Label: "Failed", Value: strings.Join(report.Failed, ", ")},
				display.Row{Label: "Duration", Value: report.Elapsed.Round(time.Second).String()},
			)
		}

		var capErr *errors.IterationCapError
		switch {
		case errors.As(err, &capErr):
			d.Warning("Checkpoint kept. Run 'gass breakdown run' again to resume.")
			return err
		case err != nil && ctx.Err() != nil:
			d.Warning("Interrupted. Run 'gass breakdown run' again to resume.")
			return nil
		case err != nil:
			return err
		}
		d.Success("Every phase is broken down")
		return nil
	},
}

var breakdownStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved breakdown checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		checkpoints := breakdown.NewFileCheckpointStore(a.planDir())
		cp, err := checkpoints.Load()
		if err != nil {
			return err
		}

		if breakdownOutput != "" {
			if cp == nil {
				cp = &breakdown.Checkpoint{Completed: []string{}, Failed: []string{}}
			}
			return writeOutput(cmd.OutOrStdout(), breakdownOutput, cp)
		}

		d := a.display
		if cp == nil {
			d.Info("Checkpoint", "none (the next run starts fresh)")
			return nil
		}
		d.Summary("Breakdown checkpoint",
			display.Row{Label: "Operation", Value: cp.OperationID},
			display.Row{Label: "Iteration", Value: fmt.Sprint(cp.Iteration)},
			display.Row{Label: "Completed", Value: strings.Join(cp.Completed, ", ")},
			display.Row{Label: "Failed", Value: strings.Join(cp.Failed, ", ")},
			display.Row{Label: "Updated", Value: cp.LastUpdated.Local().Format(time.DateTime)},
			display.Row{Label: "File", Value: checkpoints.Path()},
		)
		return nil
	},
}

var breakdownResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the breakdown checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := breakdown.NewFileCheckpointStore(a.planDir()).Clear(); err != nil {
			return err
		}
		a.logger.Info("breakdown checkpoint cleared")
		a.display.Success("Breakdown checkpoint cleared")
		return nil
	},
}

var breakdownAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List tasks too large to execute in one go",
	Long: `List leaf tasks whose duration estimate exceeds the audit threshold
(breakdown.audit_threshold_minutes, 60 by default). A range counts as
too large when either bound exceeds it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tree, err := state.BuildTree(a.store)
		if err != nil {
			return err
		}
		threshold := a.cfg.Breakdown.AuditThresholdMinutes
		if breakdownThreshold > 0 {
			threshold = breakdownThreshold
		}
		findings := breakdown.Audit(tree, threshold)

		if breakdownOutput != "" {
			if findings == nil {
				findings = []breakdown.Finding{}
			}
			return writeOutput(cmd.OutOrStdout(), breakdownOutput, findings)
		}

		d := a.display
		if len(findings) == 0 {
			d.Success(fmt.Sprintf("No task exceeds %d minutes", threshold))
			return nil
		}
		for _, f := range findings {
			status, _ := tree.StatusOf(f.ID)
			d.Phase(0, f.ID, display.Truncate(f.Title, 60), status,
				fmt.Sprintf("(%s, ~%.0f min)", f.Duration, f.Estimate))
		}
		d.Warning(fmt.Sprintf("%d tasks exceed %d minutes. Run 'gass breakdown run --deep' to split them.", len(findings), threshold))
		return nil
	},
}

func init() {
	breakdownRunCmd.Flags().BoolVar(&breakdownDeep, "deep", false, "also decompose oversized sub-phases")
	breakdownRunCmd.Flags().IntVar(&breakdownMaxIterations, "max-iterations", 0, "maximum passes (default from config)")
	breakdownRunCmd.Flags().IntVar(&breakdownParallel, "parallel", 0, "concurrent generations per pass (default from config)")
	breakdownCmd.PersistentFlags().IntVar(&breakdownThreshold, "threshold", 0, "duration threshold in minutes (default from config)")
	breakdownCmd.PersistentFlags().StringVarP(&breakdownOutput, "output", "o", "", "output format for status and audit: json or yaml")

	breakdownCmd.AddCommand(breakdownRunCmd, breakdownStatusCmd, breakdownResetCmd, breakdownAuditCmd)
	rootCmd.AddCommand(breakdownCmd)
}
