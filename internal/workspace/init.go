package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/daydemir/gass/internal/prompts"
)

// Init creates a new gass workspace in root: the .gass directory with a
// default config and editable prompt copies, plus the plan and output
// directories. It returns the created paths.
func Init(root string, force bool) ([]string, error) {
	gassPath := Path(root)

	// Check if workspace already exists
	if _, err := os.Stat(gassPath); err == nil {
		if !force {
			return nil, ErrWorkspaceExists
		}
		// Remove existing workspace if force
		if err := os.RemoveAll(gassPath); err != nil {
			return nil, fmt.Errorf("failed to remove existing workspace: %w", err)
		}
	}

	// Create directory structure
	dirs := []string{
		gassPath,
		PromptsPath(root),
		filepath.Join(root, ".ai", "plan"),
		filepath.Join(root, ".ai", "output"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Create config.yaml
	if err := writeFile(ConfigPath(root), defaultConfig); err != nil {
		return nil, err
	}

	// Copy prompt templates
	if err := copyPrompts(PromptsPath(root)); err != nil {
		return nil, err
	}

	return dirs, nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func copyPrompts(promptsDir string) error {
	for _, name := range prompts.Names() {
		content, err := prompts.Get(name)
		if err != nil {
			return fmt.Errorf("failed to get embedded prompt %s: %w", name, err)
		}
		path := filepath.Join(promptsDir, name+".md")
		if err := writeFile(path, content); err != nil {
			return err
		}
	}
	return nil
}

const defaultConfig = `# gass configuration
paths:
  plan_dir: .ai/plan       # phase documents and phases.json
  output_dir: .ai/output   # backups of generated decompositions

agent:
  binary: claude           # Path to Claude Code CLI
  model: sonnet
  preset: claude_code
  setting_sources: [user, project, local]
  allowed_tools:
    - Write
    - Read
    - Bash
    - Task
    - Edit
    - Glob
    - Grep
  fallback: true           # retry with the plain CLI when streaming fails
  timeout: 30m

executor:
  max_parallel: 5
  poll_interval: 2s
  loop_delay: 5s
  list_limit: 5            # default cap for 'gass tasks'

breakdown:
  threshold_minutes: 30
  audit_threshold_minutes: 60
  max_iterations: 100
  parallel: 1
  deep: false

log:
  level: INFO
`
