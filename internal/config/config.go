package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCapacity is the default weight budget of a workspace.
const DefaultCapacity = 100000

// configNames are tried in order inside a config directory.
var configNames = []string{"config.json", "config.yaml", "config.yml"}

// PackerConfig configures the external repository packer.
type PackerConfig struct {
	// Command is the packer binary. Defaults to "repomix".
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// OutputDir receives packed files. Defaults to ~/.buddy/packages.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`

	// Include and Ignore are glob patterns passed to the packer.
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	Ignore  []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`

	// TimeoutSeconds bounds a single packer run.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// Capacity is the maximum total token estimate per workspace.
	Capacity int `json:"capacity" yaml:"capacity"`

	// AllowedPaths is an allowlist of directories for export/backup/restore.
	// Paths outside ~/.buddy/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export and backup files.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool types to disable entirely.
	// Known types: "context", "pack", "model".
	DisabledTypes []string `json:"disabled_types,omitempty" yaml:"disabled_types,omitempty"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// LogFormat is json or console.
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`

	// DefaultModel is the model used by fit checks when none is given.
	DefaultModel string `json:"default_model,omitempty" yaml:"default_model,omitempty"`

	Packer PackerConfig `json:"packer,omitempty" yaml:"packer,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Capacity:     DefaultCapacity,
		LogLevel:     "info",
		LogFormat:    "json",
		DefaultModel: "claude-sonnet-4",
		Packer: PackerConfig{
			Command:        "repomix",
			TimeoutSeconds: 300,
		},
	}
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.Packer.TimeoutSeconds < 0 {
		return fmt.Errorf("packer.timeout_seconds must not be negative, got %d", c.Packer.TimeoutSeconds)
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// Load loads configuration from baseDir/config.{json,yaml}.
// Returns default config if no file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.buddy.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(findConfigFile(baseDir))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.buddy) and repo (.buddy) directories.
// Repo config is found by walking upward from startDir to find the nearest .buddy config.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(findConfigFile(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .buddy config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		if path := findConfigFile(filepath.Join(dir, ".buddy")); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func findConfigFile(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch filepath.Ext(configPath) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Capacity = pick(overlay.Capacity, base.Capacity)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pick(overlay.LogFormat, base.LogFormat)
	result.DefaultModel = pick(overlay.DefaultModel, base.DefaultModel)

	result.Packer.Command = pick(overlay.Packer.Command, base.Packer.Command)
	result.Packer.OutputDir = pick(overlay.Packer.OutputDir, base.Packer.OutputDir)
	result.Packer.TimeoutSeconds = pick(overlay.Packer.TimeoutSeconds, base.Packer.TimeoutSeconds)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)
	result.Packer.Include = mergeStringSlice(base.Packer.Include, overlay.Packer.Include)
	result.Packer.Ignore = mergeStringSlice(base.Packer.Ignore, overlay.Packer.Ignore)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
