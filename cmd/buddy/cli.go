package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
	"github.com/hpungsan/buddy/internal/ops"
	"github.com/hpungsan/buddy/internal/web"
)

// maxStdinBytes bounds piped content. Larger input cannot fit any sane
// capacity anyway.
const maxStdinBytes = 64 << 20

// cliEnv is what commands need from the process: the operations plus the
// terminal, so tests can substitute buffers.
type cliEnv struct {
	deps *ops.Deps

	// stdin is piped content; nil when stdin is a terminal.
	stdin io.Reader

	// tty is the controlling terminal for prompts and OSC 52, nil when
	// there is none.
	tty interface {
		io.Reader
		io.Writer
	}

	getenv  func(string) string
	closers []io.Closer
}

func (e *cliEnv) close() {
	for _, c := range e.closers {
		_ = c.Close()
	}
}

// confirmer asks on the terminal, or reports that it cannot.
func (e *cliEnv) confirmer() accumulator.Confirmer {
	if e.tty == nil {
		return accumulator.NonInteractive
	}
	return &promptConfirmer{in: e.tty, out: e.tty}
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *cliEnv) *cli.App {
	app := &cli.App{
		Name:    "buddy",
		Usage:   "Bounded context accumulator for LLM prompts",
		Version: Version,
		Commands: []*cli.Command{
			addCmd(env),
			addDirCmd(env),
			removeCmd(env),
			clearCmd(env),
			listCmd(env),
			getCmd(env),
			summaryCmd(env),
			exportCmd(env),
			shareCmd(env),
			backupCmd(env),
			restoreCmd(env),
			workspacesCmd(env),
			statusCmd(env),
			packCmd(env),
			packagesCmd(env),
			packStatsCmd(env),
			packDeleteCmd(env),
			modelsCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func workspaceFlag() cli.Flag {
	return &cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace name (default: \"default\")"}
}

func evictFlag() cli.Flag {
	return &cli.StringFlag{Name: "evict", Aliases: []string{"e"}, Value: "ask", Usage: "When over capacity: ask|yes|no"}
}

func evictMode(c *cli.Context) (ops.EvictMode, error) {
	return ops.ParseEvictMode(c.String("evict"))
}

// addCmd creates the add command.
func addCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a file, a line range of a file, or piped text",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "lines", Aliases: []string{"l"}, Usage: "Line range to capture, e.g. 10:40"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name (default: file name)"},
			&cli.StringFlag{Name: "kind", Usage: "file|selection|directory (default: inferred)"},
			&cli.StringFlag{Name: "source", Usage: "Source path recorded for piped text"},
			evictFlag(),
		},
		Action: func(c *cli.Context) error {
			mode, err := evictMode(c)
			if err != nil {
				return outputError(err)
			}
			input := ops.AddInput{
				Workspace:   c.String("workspace"),
				Kind:        contextitem.Kind(c.String("kind")),
				DisplayName: c.String("name"),
				SourcePath:  c.String("source"),
				Lines:       c.String("lines"),
				Evict:       mode,
				Confirmer:   env.confirmer(),
			}

			switch {
			case c.NArg() > 0:
				input.Path = c.Args().First()
			case env.stdin != nil:
				text, err := readStdin(env.stdin, maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				if text == "" {
					return outputError(errors.NewInvalidRequest("stdin was empty"))
				}
				input.Content = &text
			default:
				return outputError(errors.NewInvalidRequest("give a file path or pipe content on stdin"))
			}

			output, err := env.deps.Add(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// addDirCmd creates the add-dir command.
func addDirCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "add-dir",
		Usage:     "Pack a directory with repomix and add it as one item",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name (default: directory name)"},
			&cli.StringSliceFlag{Name: "include", Usage: "Glob pattern to include (repeatable)"},
			&cli.StringSliceFlag{Name: "ignore", Usage: "Glob pattern to ignore (repeatable)"},
			evictFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("directory is required"))
			}
			mode, err := evictMode(c)
			if err != nil {
				return outputError(err)
			}
			output, err := env.deps.AddDirectory(c.Context, ops.AddDirectoryInput{
				Workspace:   c.String("workspace"),
				Dir:         c.Args().First(),
				DisplayName: c.String("name"),
				Include:     c.StringSlice("include"),
				Ignore:      c.StringSlice("ignore"),
				Evict:       mode,
				Confirmer:   env.confirmer(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// removeCmd creates the remove command.
func removeCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove an item by id",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{workspaceFlag()},
		Action: func(c *cli.Context) error {
			output, err := env.deps.Remove(c.Context, ops.RemoveInput{
				Workspace: c.String("workspace"),
				ID:        c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every item in a workspace",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
		},
		Action: func(c *cli.Context) error {
			workspace := c.String("workspace")
			if !c.Bool("yes") {
				if env.tty == nil {
					return outputError(errors.NewInvalidRequest("refusing to clear without a terminal; pass --yes"))
				}
				ok, err := askYesNo(env.tty, env.tty, fmt.Sprintf("Remove every item in workspace %q? [y/N] ", displayWorkspace(workspace)))
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				if !ok {
					return cli.Exit("aborted", 1)
				}
			}
			output, err := env.deps.Clear(c.Context, ops.ClearInput{Workspace: workspace})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List items (no content), oldest first",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Value: ops.SortOldest, Usage: "oldest|newest"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.deps.List(c.Context, ops.ListInput{
				Workspace: c.String("workspace"),
				Sort:      c.String("sort"),
				Limit:     c.Int("limit"),
				Offset:    c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// getCmd creates the get command.
func getCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one item including its content",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.BoolFlag{Name: "content-only", Aliases: []string{"c"}, Usage: "Print only the raw content"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.deps.Get(c.Context, ops.GetInput{
				Workspace: c.String("workspace"),
				ID:        c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("content-only") {
				_, err := io.WriteString(c.App.Writer, output.Content)
				return err
			}
			return outputJSON(c, output)
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Print the Markdown summary of a workspace",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.BoolFlag{Name: "json", Usage: "Print JSON including model fit"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.deps.Summary(c.Context, ops.SummaryInput{Workspace: c.String("workspace")})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c, output)
			}
			_, err = io.WriteString(c.App.Writer, output.Markdown)
			return err
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Print every item as one Markdown document, or write it to a file",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to this .md or .txt file"},
			&cli.BoolFlag{Name: "save", Usage: "Write to ~/.buddy/exports/<workspace>-<timestamp>.md"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.deps.Export(c.Context, ops.ExportInput{
				Workspace: c.String("workspace"),
				Path:      c.String("output"),
				ToFile:    c.Bool("save"),
			})
			if err != nil {
				return outputError(err)
			}
			if output.Path != "" {
				return outputJSON(c, output)
			}
			_, err = io.WriteString(c.App.Writer, output.Content)
			return err
		},
	}
}

// shareCmd creates the share command.
func shareCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "share",
		Usage: "Copy the export to the clipboard (OSC 52), or print it when not on a terminal",
		Flags: []cli.Flag{workspaceFlag()},
		Action: func(c *cli.Context) error {
			workspace := c.String("workspace")
			if env.tty == nil {
				output, err := env.deps.Export(c.Context, ops.ExportInput{Workspace: workspace})
				if err != nil {
					return outputError(err)
				}
				_, err = io.WriteString(c.App.Writer, output.Content)
				return err
			}

			getenv := env.getenv
			if getenv == nil {
				getenv = os.Getenv
			}
			output, err := env.deps.Share(c.Context, ops.ShareInput{
				Workspace:   workspace,
				Out:         env.tty,
				Multiplexer: ops.DetectMultiplexer(getenv),
			})
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintf(c.App.ErrWriter, "Copied %d items (%d tokens) to the clipboard.\n", output.Items, output.Tokens)
			return nil
		},
	}
}

// backupCmd creates the backup command.
func backupCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Write a workspace to a JSONL backup",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Backup file (default: ~/.buddy/exports/<workspace>-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.deps.Backup(c.Context, ops.BackupInput{
				Workspace: c.String("workspace"),
				Path:      c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// restoreCmd creates the restore command.
func restoreCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Load a JSONL backup into a workspace",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.RestoreReplace), Usage: "replace|append"},
			evictFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("backup path is required"))
			}
			mode, err := evictMode(c)
			if err != nil {
				return outputError(err)
			}
			output, err := env.deps.Restore(c.Context, ops.RestoreInput{
				Workspace: c.String("workspace"),
				Path:      c.Args().First(),
				Mode:      ops.RestoreMode(c.String("mode")),
				Evict:     mode,
				Confirmer: env.confirmer(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// workspacesCmd creates the workspaces command.
func workspacesCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "workspaces",
		Usage: "List non-empty workspaces",
		Action: func(c *cli.Context) error {
			output, err := env.deps.Workspaces(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show capacity use, packer availability and model setup",
		Flags: []cli.Flag{workspaceFlag()},
		Action: func(c *cli.Context) error {
			output, err := env.deps.Status(c.Context, ops.StatusInput{Workspace: c.String("workspace")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// packCmd creates the pack command.
func packCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Pack a directory into one file without adding it",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "include", Usage: "Glob pattern to include (repeatable)"},
			&cli.StringSliceFlag{Name: "ignore", Usage: "Glob pattern to ignore (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.deps.Pack(c.Context, ops.PackInput{
				Dir:     c.Args().First(),
				Include: c.StringSlice("include"),
				Ignore:  c.StringSlice("ignore"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// packagesCmd creates the packages command.
func packagesCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "packages",
		Usage: "List packed files, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum entries (default all)"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.deps.Packages(c.Context, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// packStatsCmd creates the pack-stats command.
func packStatsCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "pack-stats",
		Usage:     "Show file, token and character totals of a packed file",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			output, err := env.deps.PackStats(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// packDeleteCmd creates the pack-delete command.
func packDeleteCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "pack-delete",
		Usage:     "Delete a packed file",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			output, err := env.deps.PackDelete(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// modelsCmd creates the models command.
func modelsCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "List known models, or check whether a workspace fits one",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.BoolFlag{Name: "fit", Usage: "Check the workspace against a model's context window"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model id for --fit (default: config default_model)"},
			&cli.BoolFlag{Name: "precise", Usage: "Count tokens with the model's tokenizer"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("fit") {
				output, err := env.deps.ListModels(c.Context)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, output)
			}
			output, err := env.deps.ModelFit(c.Context, ops.ModelFitInput{
				Workspace: c.String("workspace"),
				Model:     c.String("model"),
				Precise:   c.Bool("precise"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 7777, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port <= 0 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port %d", port)))
			}
			srv := web.NewServer(env.deps, Version, c.String("bind"), port)
			return web.Run(srv, env.deps.Logger)
		},
	}
}

// Helper functions

// outputJSON marshals result to the app's writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var bErr *errors.BuddyError
	if stderrors.As(err, &bErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", bErr.Code, bErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readStdin reads piped content up to limit bytes.
func readStdin(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func displayWorkspace(ws string) string {
	if strings.TrimSpace(ws) == "" {
		return "default"
	}
	return ws
}
