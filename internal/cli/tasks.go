package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daydemir/gass/internal/display"
	"github.com/daydemir/gass/internal/resolver"
	"github.com/daydemir/gass/internal/types"
)

var (
	tasksPhase  string
	tasksFilter string
	tasksLimit  int
	tasksOutput string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks ready to execute",
	Long: `List the leaf tasks that are ready to execute: pending, not
broken down further, and with every dependency completed.

Tasks are ordered by priority, then by phase id.

Examples:
  gass tasks                   All ready tasks
  gass tasks --phase 2         Ready tasks directly under phase 2
  gass tasks --filter api      Tasks mentioning "api"
  gass tasks --output json     Machine-readable output`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := resolver.Load(a.store, resolver.Options{
			Scope:  types.PhaseID(tasksPhase),
			Filter: tasksFilter,
		})
		if err != nil {
			return err
		}

		limit := tasksLimit
		if limit < 0 {
			limit = a.cfg.Executor.ListLimit
		}
		total := len(tasks)
		if limit > 0 && len(tasks) > limit {
			tasks = tasks[:limit]
		}

		if tasksOutput != "" {
			if tasks == nil {
				tasks = []resolver.Task{}
			}
			return writeOutput(cmd.OutOrStdout(), tasksOutput, tasks)
		}

		d := a.display
		if total == 0 {
			d.Warning("No tasks are ready")
			return nil
		}
		for _, t := range tasks {
			detail := fmt.Sprintf("[%s]", t.ParentID)
			if !t.Duration.IsZero() {
				detail = fmt.Sprintf("[%s, %s]", t.ParentID, t.Duration)
			}
			if !t.Priority.IsZero() {
				detail += " priority " + t.Priority.String()
			}
			d.Phase(0, t.ID, display.Truncate(t.Title, 60), t.Status, detail)
		}
		if total > len(tasks) {
			d.Info("Showing", fmt.Sprintf("%d of %d ready tasks (use --limit 0 for all)", len(tasks), total))
		} else {
			d.Info("Ready", fmt.Sprintf("%d tasks", total))
		}
		return nil
	},
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksPhase, "phase", "p", "", "only tasks directly under this phase")
	tasksCmd.Flags().StringVarP(&tasksFilter, "filter", "f", "", "only tasks whose id or description contains this text")
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "n", -1, "maximum tasks to show (0 for all, default from config)")
	tasksCmd.Flags().StringVarP(&tasksOutput, "output", "o", "", "output format: json or yaml")
	rootCmd.AddCommand(tasksCmd)
}
