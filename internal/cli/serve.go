package cli

import (
	"github.com/spf13/cobra"

	"github.com/daydemir/gass/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the plan to agents over MCP (stdio)",
	Long: `Run an MCP server on stdin/stdout exposing the plan as tools:

  ready_tasks        Ready leaf tasks, optionally scoped and filtered
  set_phase_status   Set a phase status with cascading
  plan_status        The plan tree or one phase with its children
  check_plan         Status inconsistencies and per-phase progress

Register it with Claude Code:
  claude mcp add gass -- gass serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.logger.Info("mcp server starting", "plan_dir", a.planDir())
		s := mcpserver.New(a.store, mcpserver.Options{
			Version:   version,
			ListLimit: a.cfg.Executor.ListLimit,
			Logger:    a.logger,
		})
		return mcpserver.Serve(s)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
