package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the gass configuration
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Breakdown BreakdownConfig `mapstructure:"breakdown" yaml:"breakdown"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// PathsConfig locates the plan relative to the project root
type PathsConfig struct {
	PlanDir   string `mapstructure:"plan_dir" yaml:"plan_dir"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// AgentConfig contains agent CLI settings
type AgentConfig struct {
	Binary         string        `mapstructure:"binary" yaml:"binary"`
	Model          string        `mapstructure:"model" yaml:"model"`
	Preset         string        `mapstructure:"preset" yaml:"preset"`
	SettingSources []string      `mapstructure:"setting_sources" yaml:"setting_sources"`
	AllowedTools   []string      `mapstructure:"allowed_tools" yaml:"allowed_tools"`
	Fallback       *bool         `mapstructure:"fallback" yaml:"fallback,omitempty"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// FallbackEnabled reports whether the legacy CLI fallback is on. It
// defaults to true when the key is absent.
func (a AgentConfig) FallbackEnabled() bool {
	return a.Fallback == nil || *a.Fallback
}

// ExecutorConfig contains task execution settings
type ExecutorConfig struct {
	MaxParallel  int           `mapstructure:"max_parallel" yaml:"max_parallel"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	LoopDelay    time.Duration `mapstructure:"loop_delay" yaml:"loop_delay"`
	ListLimit    int           `mapstructure:"list_limit" yaml:"list_limit"`
}

// BreakdownConfig contains decomposition settings
type BreakdownConfig struct {
	ThresholdMinutes      int  `mapstructure:"threshold_minutes" yaml:"threshold_minutes"`
	AuditThresholdMinutes int  `mapstructure:"audit_threshold_minutes" yaml:"audit_threshold_minutes"`
	MaxIterations         int  `mapstructure:"max_iterations" yaml:"max_iterations"`
	Parallel              int  `mapstructure:"parallel" yaml:"parallel"`
	Deep                  bool `mapstructure:"deep" yaml:"deep"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// FileName is the config file inside the workspace directory.
const FileName = "config.yaml"

// Load reads the config from the workspace directory (.gass)
func Load(workspaceDir string) (*Config, error) {
	return LoadFile(filepath.Join(workspaceDir, FileName))
}

// LoadFile reads the config at path. A missing file yields the defaults.
func LoadFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			PlanDir:   ".ai/plan",
			OutputDir: ".ai/output",
		},
		Agent: AgentConfig{
			Binary:         "claude",
			Model:          "sonnet",
			Preset:         "claude_code",
			SettingSources: []string{"user", "project", "local"},
			AllowedTools:   []string{"Write", "Read", "Bash", "Task", "Edit", "Glob", "Grep"},
			Timeout:        30 * time.Minute,
		},
		Executor: ExecutorConfig{
			MaxParallel:  5,
			PollInterval: 2 * time.Second,
			LoopDelay:    5 * time.Second,
			ListLimit:    5,
		},
		Breakdown: BreakdownConfig{
			ThresholdMinutes:      30,
			AuditThresholdMinutes: 60,
			MaxIterations:         100,
			Parallel:              1,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Paths.PlanDir == "" {
		cfg.Paths.PlanDir = defaults.Paths.PlanDir
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = defaults.Paths.OutputDir
	}
	if cfg.Agent.Binary == "" {
		cfg.Agent.Binary = defaults.Agent.Binary
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = defaults.Agent.Model
	}
	if cfg.Agent.Preset == "" {
		cfg.Agent.Preset = defaults.Agent.Preset
	}
	if len(cfg.Agent.SettingSources) == 0 {
		cfg.Agent.SettingSources = defaults.Agent.SettingSources
	}
	if len(cfg.Agent.AllowedTools) == 0 {
		cfg.Agent.AllowedTools = defaults.Agent.AllowedTools
	}
	if cfg.Agent.Timeout <= 0 {
		cfg.Agent.Timeout = defaults.Agent.Timeout
	}
	if cfg.Executor.MaxParallel <= 0 {
		cfg.Executor.MaxParallel = defaults.Executor.MaxParallel
	}
	if cfg.Executor.PollInterval <= 0 {
		cfg.Executor.PollInterval = defaults.Executor.PollInterval
	}
	if cfg.Executor.LoopDelay <= 0 {
		cfg.Executor.LoopDelay = defaults.Executor.LoopDelay
	}
	if cfg.Executor.ListLimit < 0 {
		cfg.Executor.ListLimit = defaults.Executor.ListLimit
	}
	if cfg.Breakdown.ThresholdMinutes <= 0 {
		cfg.Breakdown.ThresholdMinutes = defaults.Breakdown.ThresholdMinutes
	}
	if cfg.Breakdown.AuditThresholdMinutes <= 0 {
		cfg.Breakdown.AuditThresholdMinutes = defaults.Breakdown.AuditThresholdMinutes
	}
	if cfg.Breakdown.MaxIterations <= 0 {
		cfg.Breakdown.MaxIterations = defaults.Breakdown.MaxIterations
	}
	if cfg.Breakdown.Parallel <= 0 {
		cfg.Breakdown.Parallel = defaults.Breakdown.Parallel
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// Resolve returns path joined to root unless it is already absolute.
func Resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Get reads one key from the config file at configPath.
func Get(configPath, key string) (any, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	value := v.Get(key)
	if value == nil {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return value, nil
}

// Set writes one key to the config file at configPath. value may be a
// string or a []string.
func Set(configPath, key string, value any) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	v.Set(key, value)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
