package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/daydemir/gass/internal/display"
	"github.com/daydemir/gass/internal/workspace"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new gass workspace",
	Long: `Initialize a new gass workspace in the current directory.

Creates:
  .gass/config.yaml   Configuration settings
  .gass/prompts/      Customizable prompt templates
  .ai/plan/           Plan documents (phases.json and <id>.json)
  .ai/output/         Backups of generated breakdowns`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		created, err := workspace.Init(cwd, initForce)
		if err != nil {
			return err
		}

		d := display.NewWithOptions(noColor)
		for _, dir := range created {
			rel, err := filepath.Rel(cwd, dir)
			if err != nil {
				rel = dir
			}
			d.Success("Created " + rel + "/")
		}
		d.Summary("Next steps",
			display.Row{Label: "1", Value: "Write the top-level plan to .ai/plan/phases.json"},
			display.Row{Label: "2", Value: "gass breakdown run   decompose large phases"},
			display.Row{Label: "3", Value: "gass run --loop      execute ready tasks"},
		)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing workspace")
	rootCmd.AddCommand(initCmd)
}
