package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daydemir/gass/internal/cascade"
	"github.com/daydemir/gass/internal/display"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/types"
)

var (
	statusAll    bool
	statusOutput string
	checkPhase   string
	checkFix     bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show or change phase status",
	Long: `Show or change the status of phases in the plan.

Subcommands:
  gass status list               Show the plan tree with status
  gass status set 2.1 completed  Set one phase (cascades to children and parents)
  gass status set --all pending  Reset every phase
  gass status check              Report status inconsistencies
  gass status check --fix        Repair them

Running 'gass status' alone is the same as 'gass status list'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusListCmd.RunE(cmd, args)
	},
}

var statusSetCmd = &cobra.Command{
	Use:   "set <id> <status> | --all <status>",
	Short: "Set the status of a phase",
	Long: `Set the status of a phase. Status is one of pending, in-progress
or completed.

Setting a decomposed phase applies the status to every descendant.
Completing the last open child of a parent completes the parent, and
so on up the tree. A parent is never reopened automatically.

With --all, every stored phase and summary gets the status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusAll {
			if len(args) != 1 {
				return fmt.Errorf("usage: gass status set --all <status>")
			}
		} else if len(args) != 2 {
			return fmt.Errorf("usage: gass status set <id> <status>")
		}

		status, err := types.ParseStatus(args[len(args)-1])
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		d := a.display

		if statusAll {
			n, err := cascade.SetAll(a.store, status)
			if err != nil {
				return err
			}
			a.logger.Info("status set on all phases", "status", string(status), "documents", n)
			d.Success(fmt.Sprintf("Set %d phase documents to %s", n, status))
			return nil
		}

		id := types.PhaseID(args[0])
		res, err := cascade.New(a.store, a.logger).SetStatus(id, status)
		if err != nil {
			return err
		}
		for _, c := range res.Changes {
			msg := fmt.Sprintf("%s: %s → %s", c.ID, c.From.OrPending(), c.To)
			switch {
			case c.Auto:
				d.Resume(msg + " (auto)")
			case c.SummaryOnly:
				d.Info("Summary", msg)
			default:
				d.Success(msg)
			}
		}
		if len(res.Changes) == 0 {
			d.Info("Unchanged", fmt.Sprintf("%s is already %s", id, status))
		}
		return nil
	},
}

// phaseEntry is one row of 'status list' output.
type phaseEntry struct {
	ID                types.PhaseID  `json:"id" yaml:"id"`
	Title             string         `json:"title" yaml:"title"`
	Status            types.Status   `json:"status" yaml:"status"`
	Depth             int            `json:"depth" yaml:"depth"`
	Duration          types.Duration `json:"duration,omitzero" yaml:"duration,omitempty"`
	Children          int            `json:"children,omitempty" yaml:"children,omitempty"`
	ChildrenCompleted int            `json:"children_completed,omitempty" yaml:"children_completed,omitempty"`
}

// planOverview is the machine-readable form of 'status list'.
type planOverview struct {
	Phases           []phaseEntry `json:"phases" yaml:"phases"`
	LeavesCompleted  int          `json:"leaves_completed" yaml:"leaves_completed"`
	LeavesTotal      int          `json:"leaves_total" yaml:"leaves_total"`
	RemainingMinutes float64      `json:"remaining_minutes" yaml:"remaining_minutes"`
}

var statusListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the plan tree with status",
	Args:  cobra.NoArgs,
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
		overview := buildOverview(tree)

		if statusOutput != "" {
			return writeOutput(cmd.OutOrStdout(), statusOutput, overview)
		}

		d := a.display
		if len(overview.Phases) == 0 {
			d.Warning("The plan is empty. Add phases to " + a.planDir())
			return nil
		}
		for _, p := range overview.Phases {
			detail := ""
			if p.Children > 0 {
				detail = fmt.Sprintf("(%d/%d sub-phases)", p.ChildrenCompleted, p.Children)
			} else if !p.Duration.IsZero() {
				detail = "(" + p.Duration.String() + ")"
			}
			d.Phase(p.Depth, p.ID, display.Truncate(p.Title, 60), p.Status, detail)
		}

		remaining := time.Duration(overview.RemainingMinutes * float64(time.Minute)).Round(time.Minute)
		d.Summary("Progress",
			display.Row{Label: "Tasks", Value: d.ProgressBar(overview.LeavesCompleted, overview.LeavesTotal, 20)},
			display.Row{Label: "Remaining", Value: fmt.Sprintf("~%s estimated", remaining)},
		)
		return nil
	},
}

func buildOverview(tree *state.Tree) planOverview {
	ov := planOverview{Phases: []phaseEntry{}}
	var walk func(n *state.Node, depth int)
	walk = func(n *state.Node, depth int) {
		entry := phaseEntry{ID: n.ID, Title: n.Title(), Status: n.Status(), Depth: depth}
		if n.Doc != nil {
			entry.Duration = n.Doc.Duration
		}
		if entry.Duration.IsZero() && n.Summary != nil {
			entry.Duration = n.Summary.Duration
		}

		children := tree.Children(n.ID)
		entry.Children = len(children)
		for _, c := range children {
			if c.Status() == types.StatusCompleted {
				entry.ChildrenCompleted++
			}
		}
		if len(children) == 0 {
			ov.LeavesTotal++
			if entry.Status == types.StatusCompleted {
				ov.LeavesCompleted++
			} else {
				ov.RemainingMinutes += entry.Duration.AverageEstimate()
			}
		}

		ov.Phases = append(ov.Phases, entry)
		for _, c := range children {
			walk(c, depth+1)
		}
	}
	for _, root := range tree.Roots() {
		walk(root, 0)
	}
	return ov
}

var statusCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report status inconsistencies",
	Long: `Check that parent statuses agree with their children.

Reports parents whose children are all completed but which are not,
completed parents with open children, and cached child summaries that
disagree with the child's own document.

With --fix, stale summaries are refreshed and parents whose children
are all completed are completed. Completed parents are never reopened.`,
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
		scope := types.PhaseID(checkPhase)
		if scope != "" {
			if _, ok := tree.Get(scope); !ok {
				return fmt.Errorf("phase %s not found in plan", scope)
			}
		}
		report := cascade.Check(tree, scope)

		if statusOutput != "" && !checkFix {
			return writeOutput(cmd.OutOrStdout(), statusOutput, report)
		}

		d := a.display
		if statusOutput == "" {
			for _, p := range report.Phases {
				d.Phase(p.ID.Depth()-1, p.ID, display.Truncate(p.Title, 40), p.Status,
					d.ProgressBar(p.LeavesCompleted, p.LeavesTotal, 10))
			}
			for _, issue := range report.Issues {
				msg := fmt.Sprintf("%s %s", issue.ID, issue.Kind)
				if issue.Detail != "" {
					msg += ": " + issue.Detail
				}
				d.Warning(msg)
			}
		}

		if report.Consistent() {
			if statusOutput == "" {
				d.Success("All statuses are consistent")
			}
			return nil
		}
		if !checkFix {
			return fmt.Errorf("%d status issues found (run with --fix to repair)", len(report.Issues))
		}

		res, err := cascade.New(a.store, a.logger).Repair(report)
		if res != nil && statusOutput == "" {
			for _, c := range res.Changes {
				d.Success(fmt.Sprintf("%s: %s → %s", c.ID, c.From.OrPending(), c.To))
			}
		}
		if err != nil {
			return err
		}

		tree, err = state.BuildTree(a.store)
		if err != nil {
			return err
		}
		after := cascade.Check(tree, scope)
		if statusOutput != "" {
			return writeOutput(cmd.OutOrStdout(), statusOutput, after)
		}
		if after.Consistent() {
			d.Success("All statuses are consistent")
			return nil
		}
		for _, issue := range after.Issues {
			d.Warning(fmt.Sprintf("%s %s (not repaired)", issue.ID, issue.Kind))
		}
		return nil
	},
}

func init() {
	statusSetCmd.Flags().BoolVar(&statusAll, "all", false, "set the status of every phase")
	statusCmd.PersistentFlags().StringVarP(&statusOutput, "output", "o", "", "output format: json or yaml")
	statusCheckCmd.Flags().StringVarP(&checkPhase, "phase", "p", "", "only check this phase and its descendants")
	statusCheckCmd.Flags().BoolVar(&checkFix, "fix", false, "repair what can be repaired")

	statusCmd.AddCommand(statusSetCmd, statusListCmd, statusCheckCmd)
	rootCmd.AddCommand(statusCmd)
}
