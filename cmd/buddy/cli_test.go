package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/buddy/internal/config"
	"github.com/hpungsan/buddy/internal/db"
	"github.com/hpungsan/buddy/internal/models"
	"github.com/hpungsan/buddy/internal/ops"
	"github.com/hpungsan/buddy/internal/pack"
)

// fakeTTY answers prompts from in and records everything written.
type fakeTTY struct {
	in  *strings.Reader
	out bytes.Buffer
}

func (f *fakeTTY) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeTTY) Write(p []byte) (int, error) { return f.out.Write(p) }

func newTTY(answers string) *fakeTTY {
	return &fakeTTY{in: strings.NewReader(answers)}
}

// setupEnv creates a CLI environment over a temporary database.
func setupEnv(t *testing.T, capacity int) *cliEnv {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Capacity = capacity
	cfg.AllowUnsafePaths = true

	mock := &pack.MockExecutor{
		Stdout: []byte("0.3.0\n"),
		OnRun: func(args []string) error {
			if out := pack.OutputArg(args); out != "" {
				return os.WriteFile(out, []byte("Total Files: 4 files\nTotal Tokens: 10 tokens\n"), 0600)
			}
			return nil
		},
	}
	logger := zaptest.NewLogger(t)
	deps := &ops.Deps{
		DB:     database,
		Config: cfg,
		Logger: logger,
		Packer: pack.New(pack.Options{OutputDir: t.TempDir(), Executor: mock, Logger: logger}),
		Models: models.New(models.Options{
			Getenv:   func(string) string { return "" },
			LookPath: func(string) (string, error) { return "", os.ErrNotExist },
		}),
	}
	return &cliEnv{deps: deps, getenv: func(string) string { return "" }}
}

// runCLI runs one command and returns what it wrote to stdout and stderr.
func runCLI(t *testing.T, env *cliEnv, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	app := newCLIApp(env)
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	err = app.Run(append([]string{"buddy"}, args...))
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, env *cliEnv, args ...string) string {
	t.Helper()
	out, _, err := runCLI(t, env, args...)
	require.NoError(t, err, "buddy %s", strings.Join(args, " "))
	return out
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}

func addText(t *testing.T, env *cliEnv, name, text string, args ...string) ops.AddOutput {
	t.Helper()
	env.stdin = strings.NewReader(text)
	defer func() { env.stdin = nil }()
	return decodeJSON[ops.AddOutput](t, mustRun(t, env, append([]string{"add", "--name", name}, args...)...))
}

func TestCLIAdd_Stdin(t *testing.T) {
	env := setupEnv(t, 100)
	out := addText(t, env, "snippet", "hello world\n", "-w", "Proj")

	assert.Equal(t, "proj", out.Workspace)
	assert.Equal(t, "snippet", out.Item.DisplayName)
	assert.EqualValues(t, "selection", out.Item.Kind)
	assert.Equal(t, 3, out.Item.SizeEstimate) // 11 bytes
}

func TestCLIAdd_FileLines(t *testing.T) {
	env := setupEnv(t, 100)
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0600))

	out := decodeJSON[ops.AddOutput](t, mustRun(t, env, "add", "--lines", "3", path))
	assert.Equal(t, "main.go (lines 3:3)", out.Item.DisplayName)

	out = decodeJSON[ops.AddOutput](t, mustRun(t, env, "add", path))
	assert.EqualValues(t, "file", out.Item.Kind)
	assert.Equal(t, "main.go", out.Item.DisplayName)
}

func TestCLIAdd_Errors(t *testing.T) {
	env := setupEnv(t, 100)

	_, _, err := runCLI(t, env, "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")

	_, _, err = runCLI(t, env, "add", filepath.Join(t.TempDir(), "missing.go"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[FILE_NOT_FOUND]")

	_, _, err = runCLI(t, env, "add", "--evict", "maybe", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evict must be")

	env.stdin = strings.NewReader("")
	_, _, err = runCLI(t, env, "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin was empty")
}

func TestCLIAdd_Eviction(t *testing.T) {
	fill := strings.Repeat("x", 24) // 6 tokens

	t.Run("no", func(t *testing.T) {
		env := setupEnv(t, 10)
		addText(t, env, "A", fill)
		env.stdin = strings.NewReader(fill)
		_, _, err := runCLI(t, env, "add", "--name", "B", "--evict", "no")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[EVICTION_DECLINED]")
	})

	t.Run("ask without terminal", func(t *testing.T) {
		env := setupEnv(t, 10)
		addText(t, env, "A", fill)
		env.stdin = strings.NewReader(fill)
		_, _, err := runCLI(t, env, "add", "--name", "B")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[CAPACITY_EXCEEDED]")
	})

	t.Run("ask accepted", func(t *testing.T) {
		env := setupEnv(t, 10)
		addText(t, env, "A", fill)
		tty := newTTY("y\n")
		env.tty = tty
		out := addText(t, env, "B", fill)
		require.Len(t, out.Evicted, 1)
		assert.Equal(t, "A", out.Evicted[0].DisplayName)
		assert.Contains(t, tty.out.String(), "Evicting the 1 oldest item(s) frees 6 tokens")
		assert.Contains(t, tty.out.String(), "  - A (6 tokens")
	})

	t.Run("ask declined", func(t *testing.T) {
		env := setupEnv(t, 10)
		addText(t, env, "A", fill)
		env.tty = newTTY("n\n")
		env.stdin = strings.NewReader(fill)
		_, _, err := runCLI(t, env, "add", "--name", "B")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[EVICTION_DECLINED]")
	})

	t.Run("yes", func(t *testing.T) {
		env := setupEnv(t, 10)
		addText(t, env, "A", fill)
		out := addText(t, env, "B", fill, "-e", "yes")
		assert.Len(t, out.Evicted, 1)
		assert.Equal(t, 6, out.Stats.Total)
	})
}

func TestCLIListGetRemove(t *testing.T) {
	env := setupEnv(t, 100)
	a := addText(t, env, "a", "alpha")
	addText(t, env, "b", "beta")

	list := decodeJSON[ops.ListOutput](t, mustRun(t, env, "list", "--sort", "newest"))
	require.Len(t, list.Items, 2)
	assert.Equal(t, "b", list.Items[0].DisplayName)

	assert.Equal(t, "alpha", mustRun(t, env, "get", "-c", a.Item.ID))
	detail := decodeJSON[ops.ItemDetail](t, mustRun(t, env, "get", a.Item.ID))
	assert.Equal(t, "a", detail.DisplayName)

	removed := decodeJSON[ops.RemoveOutput](t, mustRun(t, env, "remove", a.Item.ID))
	assert.Equal(t, "a", removed.Removed.DisplayName)

	_, _, err := runCLI(t, env, "get", a.Item.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[NOT_FOUND]")
}

func TestCLIClear(t *testing.T) {
	env := setupEnv(t, 100)
	addText(t, env, "a", "alpha")

	_, _, err := runCLI(t, env, "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	env.tty = newTTY("n\n")
	_, _, err = runCLI(t, env, "clear")
	require.Error(t, err)
	assert.Equal(t, "aborted", err.Error())

	env.tty = newTTY("yes\n")
	out := decodeJSON[ops.ClearOutput](t, mustRun(t, env, "clear"))
	assert.Equal(t, 1, out.Removed)

	env.tty = nil
	out = decodeJSON[ops.ClearOutput](t, mustRun(t, env, "clear", "--yes"))
	assert.Equal(t, 0, out.Removed)
}

func TestCLISummaryAndExport(t *testing.T) {
	env := setupEnv(t, 100)
	addText(t, env, "notes", strings.Repeat("n", 40))

	summary := mustRun(t, env, "summary")
	assert.Contains(t, summary, "# Context Summary")
	assert.Contains(t, summary, "**Usage:** 10%")

	withFit := decodeJSON[ops.SummaryOutput](t, mustRun(t, env, "summary", "--json"))
	assert.Len(t, withFit.Fits, len(models.Catalog))

	exported := mustRun(t, env, "export")
	assert.Contains(t, exported, strings.Repeat("n", 40))

	path := filepath.Join(t.TempDir(), "ctx.md")
	out := decodeJSON[ops.ExportOutput](t, mustRun(t, env, "export", "-o", path))
	assert.Equal(t, path, out.Path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# AI Code Buddy Context")
	assert.Contains(t, string(data), strings.Repeat("n", 40))

	_, _, err = runCLI(t, env, "export", "-o", filepath.Join(t.TempDir(), "ctx.exe"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLIShare(t *testing.T) {
	env := setupEnv(t, 100)
	addText(t, env, "a", "shared text")

	// Without a terminal the export is printed.
	out := mustRun(t, env, "share")
	assert.Contains(t, out, "shared text")

	tty := newTTY("")
	env.tty = tty
	out, stderr, err := runCLI(t, env, "share")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.True(t, strings.HasPrefix(tty.out.String(), "\x1b]52;c;"), "got %q", tty.out.String())
	assert.Contains(t, stderr, "Copied 1 items")
}

func TestCLIBackupRestore(t *testing.T) {
	env := setupEnv(t, 100)
	addText(t, env, "a", "alpha", "-w", "src")
	addText(t, env, "b", "beta", "-w", "src")

	path := filepath.Join(t.TempDir(), "src.jsonl")
	backup := decodeJSON[ops.BackupOutput](t, mustRun(t, env, "backup", "-w", "src", "-o", path))
	assert.Equal(t, 2, backup.Count)

	restored := decodeJSON[ops.RestoreOutput](t, mustRun(t, env, "restore", "-w", "dst", path))
	assert.Equal(t, 2, restored.Restored)
	assert.EqualValues(t, "replace", restored.Mode)

	appended := decodeJSON[ops.RestoreOutput](t, mustRun(t, env, "restore", "-w", "dst", "-m", "append", path))
	assert.Equal(t, 2, appended.Restored)

	ws := decodeJSON[ops.WorkspacesOutput](t, mustRun(t, env, "workspaces"))
	require.Len(t, ws.Workspaces, 2)

	_, _, err := runCLI(t, env, "restore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup path is required")
}

func TestCLIPackCommands(t *testing.T) {
	env := setupEnv(t, 1000)
	dir := t.TempDir()

	packed := decodeJSON[ops.PackOutput](t, mustRun(t, env, "pack", "--include", "*.go", dir))
	require.NotNil(t, packed.Stats)
	assert.Equal(t, 4, packed.Stats.TotalFiles)

	list := decodeJSON[ops.PackagesOutput](t, mustRun(t, env, "packages"))
	require.Len(t, list.Packages, 1)

	stats := decodeJSON[pack.Stats](t, mustRun(t, env, "pack-stats", packed.Path))
	assert.Equal(t, 10, stats.TotalTokens)

	added := decodeJSON[ops.AddDirectoryOutput](t, mustRun(t, env, "add-dir", dir))
	assert.EqualValues(t, "directory", added.Item.Kind)
	assert.Equal(t, filepath.Base(dir)+"/", added.Item.DisplayName)

	deleted := decodeJSON[ops.PackDeleteOutput](t, mustRun(t, env, "pack-delete", packed.Path))
	assert.True(t, deleted.Deleted)

	_, _, err := runCLI(t, env, "add-dir")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST] directory is required")
}

func TestCLIModelsAndStatus(t *testing.T) {
	env := setupEnv(t, 100)
	addText(t, env, "a", strings.Repeat("m", 40))

	list := decodeJSON[ops.ModelsOutput](t, mustRun(t, env, "models"))
	assert.Len(t, list.Models, len(models.Catalog))

	fit := decodeJSON[ops.ModelFitOutput](t, mustRun(t, env, "models", "--fit", "-m", "gpt-4o"))
	assert.Equal(t, "estimate", fit.Method)
	assert.Equal(t, 10, fit.Fit.Tokens)
	assert.True(t, fit.Fit.Fits)

	_, _, err := runCLI(t, env, "models", "--fit", "-m", "gpt-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")

	status := decodeJSON[ops.StatusOutput](t, mustRun(t, env, "status"))
	assert.Equal(t, 10, status.Stats.UsagePercent)
	require.NotNil(t, status.Packer)
	assert.Equal(t, "0.3.0", status.Packer.Version)
}

func TestCLIServe_InvalidPort(t *testing.T) {
	env := setupEnv(t, 100)
	_, _, err := runCLI(t, env, "serve", "--port", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"buddy"}, false},
		{"add command", []string{"buddy", "add"}, true},
		{"add-dir command", []string{"buddy", "add-dir"}, true},
		{"serve command", []string{"buddy", "serve"}, true},
		{"help flag", []string{"buddy", "--help"}, true},
		{"version flag", []string{"buddy", "-v"}, true},
		{"unknown command", []string{"buddy", "store"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isCLIMode(tt.args))
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	assert.True(t, isHelpOrVersion([]string{"buddy", "help"}))
	assert.True(t, isHelpOrVersion([]string{"buddy", "--version"}))
	assert.False(t, isHelpOrVersion([]string{"buddy", "list"}))
	assert.False(t, isHelpOrVersion([]string{"buddy"}))
}

func TestReadStdin(t *testing.T) {
	got, err := readStdin(strings.NewReader("small content\n\n"), 1000)
	require.NoError(t, err)
	assert.Equal(t, "small content", got)

	_, err = readStdin(strings.NewReader(strings.Repeat("x", 100)), 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 50 bytes")
}

func TestAskYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yep\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := askYesNo(strings.NewReader(tt.input), &out, "Go? ")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "Go? ", out.String())
	}
}
