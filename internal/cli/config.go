package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daydemir/gass/internal/config"
	"github.com/daydemir/gass/internal/workspace"
)

var configEffective bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View or modify configuration",
	Long: `View or modify gass configuration in .gass/config.yaml.

Examples:
  gass config                                Show the config file
  gass config --effective                    Show the config with defaults applied
  gass config executor.max_parallel          Get a specific value
  gass config executor.max_parallel 3        Set a value
  gass config agent.allowed_tools Read,Edit  Set a list (comma-separated)`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			root, err := workspace.FindOrCwd()
			if err != nil {
				return err
			}
			configPath = workspace.ConfigPath(root)
		}

		switch len(args) {
		case 0:
			if configEffective {
				cfg, err := config.LoadFile(configPath)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), "yaml", cfg)
			}
			return showConfig(configPath)
		case 1:
			value, err := config.Get(configPath, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		default:
			return setConfigValue(cmd, configPath, args[0], args[1])
		}
	},
}

func init() {
	configCmd.Flags().BoolVar(&configEffective, "effective", false, "show the loaded config with defaults applied")
	rootCmd.AddCommand(configCmd)
}

func showConfig(configPath string) error {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("no config at %s (run 'gass init', or use --effective to see the defaults)", configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	fmt.Print(string(content))
	return nil
}

func setConfigValue(cmd *cobra.Command, configPath, key, value string) error {
	var v any = value
	if strings.Contains(value, ",") {
		v = strings.Split(value, ",")
	}
	if err := config.Set(configPath, key, v); err != nil {
		return err
	}

	// The value is already written; report it if the file no longer loads.
	if _, err := config.LoadFile(configPath); err != nil {
		return fmt.Errorf("%s = %s was written but the config no longer loads: %w", key, value, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}
