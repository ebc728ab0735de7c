package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "gass",
	Short: "Hierarchical plan execution for Claude Code",
	Long: `gass drives a hierarchical project plan to completion with Claude Code.

The plan is a tree of phases stored as JSON documents in .ai/plan.
Leaves are executable tasks; parents complete when their children do.

Get started:
  gass init                 Initialize a workspace
  gass breakdown run        Decompose large phases into small tasks
  gass tasks                Show tasks ready to execute
  gass run                  Execute one batch of ready tasks
  gass run --loop           Keep executing as tasks become ready
  gass status check         Find status inconsistencies`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .gass/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.SetVersionTemplate(fmt.Sprintf("gass version %s\n", version))
}
