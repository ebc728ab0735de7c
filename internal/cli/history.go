package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daydemir/gass/internal/display"
	"github.com/daydemir/gass/internal/history"
	"github.com/daydemir/gass/internal/workspace"
)

var (
	historyKind   string
	historyLimit  int
	historyRun    string
	historyPhase  string
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs and task outcomes",
	Long: `Show the run history recorded in .gass/history.db.

Examples:
  gass history                   Recent runs, newest first
  gass history --kind breakdown  Only breakdown runs
  gass history --run <id>        Task outcomes of one run
  gass history --phase 2.1       Every recorded outcome of one phase`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.hasWorkspace {
			return workspace.ErrNoWorkspace
		}
		h, err := history.Open(workspace.Path(a.root))
		if err != nil {
			return err
		}
		defer h.Close()

		ctx := cmd.Context()
		d := a.display

		if historyRun != "" || historyPhase != "" {
			var events []history.Event
			if historyRun != "" {
				events, err = h.Events(ctx, historyRun)
			} else {
				events, err = h.PhaseEvents(ctx, historyPhase)
			}
			if err != nil {
				return err
			}
			if historyOutput != "" {
				if events == nil {
					events = []history.Event{}
				}
				return writeOutput(cmd.OutOrStdout(), historyOutput, events)
			}
			if len(events) == 0 {
				d.Warning("No outcomes recorded")
				return nil
			}
			for _, ev := range events {
				showEvent(d, ev)
			}
			return nil
		}

		runs, err := h.ListRuns(ctx, historyKind, historyLimit)
		if err != nil {
			return err
		}
		if historyOutput != "" {
			if runs == nil {
				runs = []history.Run{}
			}
			return writeOutput(cmd.OutOrStdout(), historyOutput, runs)
		}
		if len(runs) == 0 {
			d.Warning("No runs recorded yet")
			return nil
		}
		for _, r := range runs {
			showRun(d, r)
		}
		return nil
	},
}

func showRun(d *display.Display, r history.Run) {
	t := d.Theme()
	state := t.Warning("running")
	if r.FinishedAt != nil {
		state = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
	}
	line := fmt.Sprintf("%s  %-9s  %s  %d tasks, %s ok, %s failed  %s",
		r.StartedAt.Local().Format(time.DateTime),
		r.Kind,
		t.Dim(r.ID),
		r.Total,
		t.Success(fmt.Sprint(r.Succeeded)),
		t.Error(fmt.Sprint(r.Failed)),
		state,
	)
	if r.Note != "" {
		line += "  " + t.Dim(r.Note)
	}
	fmt.Fprintln(d.Writer(), line)
}

func showEvent(d *display.Display, ev history.Event) {
	t := d.Theme()
	result := ev.Result
	switch result {
	case "validated", "generated", "succeeded":
		result = t.Success(result)
	case "failed":
		result = t.Error(result)
	default:
		result = t.Warning(result)
	}
	line := fmt.Sprintf("%s  %-8s  %s",
		ev.CreatedAt.Local().Format(time.DateTime),
		ev.PhaseID,
		result,
	)
	if ev.ElapsedMS > 0 {
		line += " " + t.Dim((time.Duration(ev.ElapsedMS) * time.Millisecond).Round(time.Second).String())
	}
	if ev.Detail != "" {
		line += "  " + display.Truncate(ev.Detail, 80)
	}
	fmt.Fprintln(d.Writer(), line)
}

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only runs of this kind: batch or breakdown")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to show")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the outcomes of one run")
	historyCmd.Flags().StringVarP(&historyPhase, "phase", "p", "", "show every outcome of one phase")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "output format: json or yaml")
	rootCmd.AddCommand(historyCmd)
}
