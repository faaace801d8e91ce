package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Capacity != DefaultCapacity {
		t.Fatalf("Capacity = %d, want %d", cfg.Capacity, DefaultCapacity)
	}
	if cfg.Packer.Command != "repomix" {
		t.Errorf("Packer.Command = %q, want repomix", cfg.Packer.Command)
	}
	if cfg.Packer.TimeoutSeconds != 300 {
		t.Errorf("Packer.TimeoutSeconds = %d, want 300", cfg.Packer.TimeoutSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_OverridesFromJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.json"), `{"capacity": 500, "packer": {"command": "npx-repomix"}}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Capacity != 500 {
		t.Fatalf("Capacity = %d, want 500", cfg.Capacity)
	}
	if cfg.Packer.Command != "npx-repomix" {
		t.Errorf("Packer.Command = %q, want npx-repomix", cfg.Packer.Command)
	}
	if cfg.Packer.TimeoutSeconds != 300 {
		t.Errorf("Packer.TimeoutSeconds = %d, want default 300", cfg.Packer.TimeoutSeconds)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.yaml"), `
capacity: 2000
log_level: debug
disabled_types:
  - pack
packer:
  ignore:
    - "**/*.lock"
  timeout_seconds: 60
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Capacity != 2000 {
		t.Errorf("Capacity = %d, want 2000", cfg.Capacity)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.DisabledTypes) != 1 || cfg.DisabledTypes[0] != "pack" {
		t.Errorf("DisabledTypes = %v, want [pack]", cfg.DisabledTypes)
	}
	if len(cfg.Packer.Ignore) != 1 || cfg.Packer.Ignore[0] != "**/*.lock" {
		t.Errorf("Packer.Ignore = %v", cfg.Packer.Ignore)
	}
	if cfg.Packer.TimeoutSeconds != 60 {
		t.Errorf("Packer.TimeoutSeconds = %d, want 60", cfg.Packer.TimeoutSeconds)
	}
}

func TestLoad_JSONPreferredOverYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.json"), `{"capacity": 10}`)
	writeFile(t, filepath.Join(tmpDir, "config.yaml"), `capacity: 20`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Capacity != 10 {
		t.Errorf("Capacity = %d, want 10 (config.json wins)", cfg.Capacity)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.json"), `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.yaml"), "capacity: [1, 2\n")

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.json"), `{"disabled_tools": ["context_clear", "pack_delete"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "context_clear" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "context_clear")
	}
	if cfg.DisabledTools[1] != "pack_delete" {
		t.Errorf("DisabledTools[1] = %q, want %q", cfg.DisabledTools[1], "pack_delete")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, true},
		{"negative capacity", func(c *Config) { c.Capacity = -5 }, true},
		{"negative timeout", func(c *Config) { c.Packer.TimeoutSeconds = -1 }, true},
		{"console format", func(c *Config) { c.LogFormat = "console" }, false},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeFile(t, filepath.Join(globalDir, "config.json"),
		`{"capacity": 8000, "disabled_tools": ["context_clear"], "packer": {"include": ["src/**"]}}`)
	writeFile(t, filepath.Join(repoRoot, ".buddy", "config.json"),
		`{"capacity": 5000, "disabled_tools": ["pack_delete"], "packer": {"include": ["docs/**"]}}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// Repo overrides scalar
	if cfg.Capacity != 5000 {
		t.Errorf("Capacity = %d, want 5000 (repo override)", cfg.Capacity)
	}

	// Arrays merged
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if len(cfg.Packer.Include) != 2 {
		t.Errorf("Packer.Include = %v, want 2 entries", cfg.Packer.Include)
	}
}

func TestLoadWithRepo_RepoYAML(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeFile(t, filepath.Join(repoRoot, ".buddy", "config.yaml"), "default_model: o3\n")

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.DefaultModel != "o3" {
		t.Errorf("DefaultModel = %q, want o3", cfg.DefaultModel)
	}
	if cfg.Capacity != DefaultCapacity {
		t.Errorf("Capacity = %d, want default", cfg.Capacity)
	}
}

func TestLoadWithRepo_OnlyGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir()

	writeFile(t, filepath.Join(globalDir, "config.json"), `{"capacity": 8000, "disabled_tools": ["context_clear"]}`)

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.Capacity != 8000 {
		t.Errorf("Capacity = %d, want 8000", cfg.Capacity)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "context_clear" {
		t.Errorf("DisabledTools = %v, want [context_clear]", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.Capacity != DefaultCapacity {
		t.Errorf("Capacity = %d, want %d", cfg.Capacity, DefaultCapacity)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{Capacity: 10000, DBMaxOpenConns: 5, LogLevel: "info"}
	overlay := &Config{Capacity: 5000, LogLevel: "debug"}

	result := Merge(base, overlay)

	if result.Capacity != 5000 {
		t.Errorf("Capacity = %d, want 5000 (overlay)", result.Capacity)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", result.LogLevel)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{AllowUnsafePaths: true}, &Config{AllowUnsafePaths: false})

	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"context_clear", "pack_delete"}}
	overlay := &Config{DisabledTools: []string{"pack_delete", " model_list ", ""}}

	result := Merge(base, overlay)

	want := []string{"context_clear", "pack_delete", "model_list"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}
}

func TestFindRepoConfig_InCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".buddy", "config.json")
	writeFile(t, configPath, `{}`)

	if found := FindRepoConfig(tmpDir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	// tmpDir/.buddy/config.yml
	// tmpDir/subdir/deeper/
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".buddy", "config.yml")
	writeFile(t, configPath, "capacity: 1\n")

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if found := FindRepoConfig(subdir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
	if found := FindRepoConfig(""); found != "" {
		t.Errorf("FindRepoConfig(\"\") = %q, want empty string", found)
	}
}
