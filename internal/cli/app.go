package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/daydemir/gass/internal/config"
	"github.com/daydemir/gass/internal/display"
	"github.com/daydemir/gass/internal/history"
	"github.com/daydemir/gass/internal/llm"
	"github.com/daydemir/gass/internal/logging"
	"github.com/daydemir/gass/internal/state"
	"github.com/daydemir/gass/internal/utils"
	"github.com/daydemir/gass/internal/workspace"
)

// app holds what every command needs: the project root, the loaded
// config, the plan store, the logger and the console.
type app struct {
	root         string
	hasWorkspace bool
	cfg          *config.Config
	store        *state.PlanStore
	logger       *logging.Logger
	display      *display.Display
}

func loadApp() (*app, error) {
	root, err := workspace.FindOrCwd()
	if err != nil {
		return nil, err
	}
	a := &app{root: root}
	if info, err := os.Stat(workspace.Path(root)); err == nil && info.IsDir() {
		a.hasWorkspace = true
	}

	path := cfgFile
	if path == "" {
		path = workspace.ConfigPath(root)
	}
	a.cfg, err = config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if a.hasWorkspace {
		a.logger, err = logging.NewLogger(workspace.Path(root), a.cfg.Log.Level)
		if err != nil {
			return nil, err
		}
	} else {
		a.logger = logging.NopLogger()
	}

	a.store = state.NewPlanStore(a.planDir())
	a.display = display.NewWithOptions(noColor)
	return a, nil
}

func (a *app) Close() {
	a.logger.Close()
}

func (a *app) planDir() string {
	return config.Resolve(a.root, a.cfg.Paths.PlanDir)
}

func (a *app) outputDir() string {
	return config.Resolve(a.root, a.cfg.Paths.OutputDir)
}

// promptsDir is the directory whose prompts/ overrides the embedded ones.
func (a *app) promptsDir() string {
	if !a.hasWorkspace {
		return ""
	}
	return workspace.Path(a.root)
}

// agent builds the streaming Claude agent, falling back to the plain
// CLI when enabled. Each attempt gets the configured timeout.
func (a *app) agent() (llm.Agent, error) {
	binary, err := utils.FindAgentBinary(a.cfg.Agent.Binary)
	if err != nil {
		return nil, err
	}

	var legacy llm.Agent
	if a.cfg.Agent.FallbackEnabled() {
		legacy = llm.NewLegacyCLI(binary)
	}
	return llm.NewTimedFallback(llm.NewClaude(binary, a.cfg.Agent.Model), legacy, a.cfg.Agent.Timeout, a.logger), nil
}

func (a *app) invokeOptions() llm.InvokeOptions {
	return llm.InvokeOptions{
		Preset:         a.cfg.Agent.Preset,
		SettingSources: a.cfg.Agent.SettingSources,
		AllowedTools:   a.cfg.Agent.AllowedTools,
		Model:          a.cfg.Agent.Model,
		WorkDir:        a.root,
	}
}

// openHistory opens the run ledger. Without a workspace there is none
// and it returns nil.
func (a *app) openHistory() *history.Store {
	if !a.hasWorkspace {
		return nil
	}
	h, err := history.Open(workspace.Path(a.root))
	if err != nil {
		a.logger.Warn("history unavailable", "error", err)
		return nil
	}
	return h
}

// writeOutput encodes v as json or yaml to w.
func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q (expected json or yaml)", format)
}
