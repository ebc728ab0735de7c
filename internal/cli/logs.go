package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/daydemir/gass/internal/logs"
)

var logsListAll bool

var logsCmd = &cobra.Command{
	Use:   "logs [phase-id]",
	Short: "Show task transcripts",
	Long: `Show the transcripts written for every executed task.

Each transcript holds Claude's output for the task, the validation
feedback and any error. They are stored as markdown files in
<output_dir>/transcripts/.

Examples:
  gass logs           Print the latest transcript
  gass logs 2.1       Print the latest transcript of phase 2.1
  gass logs --list    List all transcripts
  gass logs 2.1 -l    List the transcripts of phase 2.1`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var phaseID string
		if len(args) == 1 {
			phaseID = args[0]
		}
		transcripts := logs.NewTranscripts(a.outputDir())
		d := a.display

		if logsListAll {
			list, err := transcripts.List(phaseID)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				d.Warning("No transcripts found in " + transcripts.Dir())
				return nil
			}
			t := d.Theme()
			for _, info := range list {
				fmt.Fprintf(d.Writer(), "%s  %-8s  %s\n",
					info.Time.Format(time.DateTime),
					info.PhaseID,
					t.Dim(filepath.Base(info.Path)))
			}
			return nil
		}

		latest, err := transcripts.Latest(phaseID)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(latest.Path)
		if err != nil {
			return fmt.Errorf("cannot read transcript: %w", err)
		}
		fmt.Fprint(d.Writer(), string(content))
		return nil
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&logsListAll, "list", "l", false, "list transcripts instead of printing one")
	rootCmd.AddCommand(logsCmd)
}
