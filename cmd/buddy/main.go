package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/config"
	"github.com/hpungsan/buddy/internal/db"
	"github.com/hpungsan/buddy/internal/logging"
	"github.com/hpungsan/buddy/internal/mcp"
	"github.com/hpungsan/buddy/internal/metrics"
	"github.com/hpungsan/buddy/internal/models"
	"github.com/hpungsan/buddy/internal/ops"
	"github.com/hpungsan/buddy/internal/pack"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add": true, "add-dir": true, "remove": true, "clear": true,
	"list": true, "get": true, "summary": true,
	"export": true, "share": true, "backup": true, "restore": true,
	"workspaces": true, "status": true,
	"pack": true, "packages": true, "pack-stats": true, "pack-delete": true,
	"models": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _               _     _
  | |__  _   _  __| | __| |_   _
  | '_ \| | | |/ _' |/ _' | | | |
  | |_) | |_| | (_| | (_| | |_| |
  |_.__/ \__,_|\__,_|\__,_|\__, |
                           |___/
  Bounded context accumulator

  Usage: buddy <command> [options]
         buddy --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(&cliEnv{}).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not determine home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, ".buddy")

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logPath := os.Getenv("BUDDY_LOG")
	if logPath == "" {
		logPath = filepath.Join(baseDir, "buddy.log")
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Path: logPath})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	database, err := db.Init(baseDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", zap.Strings("types", unknown), zap.Strings("known", mcp.KnownTypes))
	}

	deps := newDeps(database, cfg, logger, baseDir)

	if isCLIMode(args) {
		env := newTerminalEnv(deps)
		defer env.close()
		return newCLIApp(env).Run(args)
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(args) >= 2 && isTerminal() {
		return fmt.Errorf("unknown command %q\nRun 'buddy --help' for usage", args[1])
	}

	logger.Info("starting MCP server", zap.String("version", Version))
	return mcp.Run(deps, Version)
}

// newDeps wires the collaborators shared by every surface.
func newDeps(database *sql.DB, cfg *config.Config, logger *zap.Logger, baseDir string) *ops.Deps {
	outputDir := cfg.Packer.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(baseDir, "packages")
	}
	return &ops.Deps{
		DB:      database,
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector("buddy", logger),
		Packer: pack.New(pack.Options{
			Command:   cfg.Packer.Command,
			OutputDir: outputDir,
			Include:   cfg.Packer.Include,
			Ignore:    cfg.Packer.Ignore,
			Timeout:   time.Duration(cfg.Packer.TimeoutSeconds) * time.Second,
			Logger:    logger,
		}),
		Models: models.New(models.Options{}),
	}
}
