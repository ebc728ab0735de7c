package workspace

import (
	"errors"
	"os"
	"path/filepath"
)

const GassDir = ".gass"

var ErrNoWorkspace = errors.New("no gass workspace found (run 'gass init' first)")
var ErrWorkspaceExists = errors.New("gass workspace already exists (use --force to overwrite)")

// Find walks up from cwd looking for .gass/ directory
func Find() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindFrom(dir)
}

// FindFrom walks up from dir looking for .gass/ directory
func FindFrom(dir string) (string, error) {
	for {
		gassPath := filepath.Join(dir, GassDir)
		if info, err := os.Stat(gassPath); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoWorkspace
		}
		dir = parent
	}
}

// FindOrCwd returns the workspace root, or the current directory when
// there is none. Every command works without `gass init`.
func FindOrCwd() (string, error) {
	root, err := Find()
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrNoWorkspace) {
		return "", err
	}
	return os.Getwd()
}

// Path returns the .gass directory path for a workspace
func Path(root string) string {
	return filepath.Join(root, GassDir)
}

// ConfigPath returns the config.yaml path
func ConfigPath(root string) string {
	return filepath.Join(root, GassDir, "config.yaml")
}

// PromptsPath returns the directory of prompt overrides
func PromptsPath(root string) string {
	return filepath.Join(root, GassDir, "prompts")
}
