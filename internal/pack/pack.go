// Package pack drives an external repository packer (repomix) that flattens a
// directory into a single file suitable for a directory context item.
package pack

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/errors"
)

// DefaultCommand is the packer binary used when none is configured.
const DefaultCommand = "repomix"

// DefaultTimeout bounds a packer run when none is configured.
const DefaultTimeout = 5 * time.Minute

// timestampLayout is filename-safe and sorts chronologically.
const timestampLayout = "2006-01-02T15-04-05.000Z"

// Options configures a Packager.
type Options struct {
	Command   string
	OutputDir string
	Include   []string
	Ignore    []string
	Timeout   time.Duration
	Executor  CommandExecutor
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Packager runs the packer and manages its output files.
type Packager struct {
	command   string
	outputDir string
	include   []string
	ignore    []string
	timeout   time.Duration
	exec      CommandExecutor
	clock     func() time.Time
	logger    *zap.Logger
}

// PackInput contains parameters for Package. Include and Ignore add to the
// configured patterns.
type PackInput struct {
	Dir     string
	Include []string
	Ignore  []string
}

// PackOutput is the result of a successful Package run.
type PackOutput struct {
	Path     string        `json:"path"`
	Dir      string        `json:"dir"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration_ns"`
}

// PackageInfo describes a previously packed file.
type PackageInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	CreatedAt int64  `json:"created_at"`
}

// New creates a Packager, filling defaults.
func New(opts Options) *Packager {
	p := &Packager{
		command:   opts.Command,
		outputDir: opts.OutputDir,
		include:   opts.Include,
		ignore:    opts.Ignore,
		timeout:   opts.Timeout,
		exec:      opts.Executor,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if p.command == "" {
		p.command = DefaultCommand
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.exec == nil {
		p.exec = NewRealExecutor()
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.With(zap.String("component", "pack"))
	return p
}

// OutputDir returns the directory packed files are written to.
func (p *Packager) OutputDir() string {
	return p.outputDir
}

// Command returns the configured packer binary.
func (p *Packager) Command() string {
	return p.command
}

// IsInstalled reports whether the packer responds to --version, and the
// version it printed.
func (p *Packager) IsInstalled(ctx context.Context) (bool, string) {
	if _, err := p.exec.LookPath(p.command); err != nil {
		return false, ""
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stdout, _, err := p.exec.Run(ctx, "", p.command, "--version")
	if err != nil {
		p.logger.Debug("packer version check failed", zap.Error(err))
		return false, ""
	}
	return true, strings.TrimSpace(string(stdout))
}

// Package packs in.Dir into a new file under the output directory.
func (p *Packager) Package(ctx context.Context, in PackInput) (*PackOutput, error) {
	if in.Dir == "" {
		return nil, errors.NewInvalidRequest("dir is required")
	}
	dir, err := filepath.Abs(in.Dir)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid dir: %v", err))
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(in.Dir)
		}
		return nil, errors.NewInternal(err)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s is not a directory", in.Dir))
	}
	if p.outputDir == "" {
		return nil, errors.NewInvalidRequest("packer output directory is not configured")
	}
	if _, err := p.exec.LookPath(p.command); err != nil {
		return nil, errors.NewPackerUnavailable(p.command)
	}
	if err := os.MkdirAll(p.outputDir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create packer output directory: %w", err))
	}

	start := p.clock()
	name := fmt.Sprintf("repo-%s-%s.xml", sanitize(filepath.Base(dir)), start.UTC().Format(timestampLayout))
	outPath := filepath.Join(p.outputDir, name)
	args := p.buildArgs(outPath, dir, in)

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Info("packing directory", zap.String("dir", dir), zap.String("output", outPath))
	_, stderr, err := p.exec.Run(runCtx, dir, p.command, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("pack")
		}
		if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewPackerFailed(fmt.Sprintf("timed out after %s", p.timeout))
		}
		var execErr *exec.Error
		if stderrors.As(err, &execErr) {
			return nil, errors.NewPackerUnavailable(p.command)
		}
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.NewPackerFailed(msg)
	}
	if len(stderr) > 0 && !strings.Contains(string(stderr), "No suspicious files detected") {
		p.logger.Warn("packer wrote to stderr", zap.ByteString("stderr", stderr))
	}

	out, err := os.Stat(outPath)
	if err != nil {
		return nil, errors.NewPackerFailed("output file was not created")
	}

	return &PackOutput{
		Path:     outPath,
		Dir:      dir,
		Size:     out.Size(),
		Duration: p.clock().Sub(start),
	}, nil
}

func (p *Packager) buildArgs(outPath, dir string, in PackInput) []string {
	args := []string{"--output", outPath}
	if include := mergePatterns(p.include, in.Include); len(include) > 0 {
		args = append(args, "--include", strings.Join(include, ","))
	}
	if ignore := mergePatterns(p.ignore, in.Ignore); len(ignore) > 0 {
		args = append(args, "--ignore", strings.Join(ignore, ","))
	}
	return append(args, dir)
}

// List returns packed files, newest first.
func (p *Packager) List() ([]PackageInfo, error) {
	entries, err := os.ReadDir(p.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []PackageInfo{}, nil
		}
		return nil, errors.NewInternal(err)
	}

	pkgs := []PackageInfo{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".xml" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		pkgs = append(pkgs, PackageInfo{
			Name:      e.Name(),
			Path:      filepath.Join(p.outputDir, e.Name()),
			Size:      info.Size(),
			SizeHuman: humanize.Bytes(uint64(info.Size())),
			CreatedAt: info.ModTime().UnixMilli(),
		})
	}

	slices.SortStableFunc(pkgs, func(a, b PackageInfo) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt > b.CreatedAt {
				return -1
			}
			return 1
		}
		// Names embed the timestamp, so they break mtime ties.
		return strings.Compare(b.Name, a.Name)
	})
	return pkgs, nil
}

// Delete removes a packed file. Only files directly inside the output
// directory may be deleted.
func (p *Packager) Delete(path string) error {
	target, err := p.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
		return errors.NewInternal(err)
	}
	p.logger.Info("deleted package", zap.String("path", target))
	return nil
}

// Read returns the content of a packed file inside the output directory.
func (p *Packager) Read(path string) (string, error) {
	target, err := p.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// resolve accepts a bare file name or a path and requires the result to sit
// directly in the output directory with an .xml extension.
func (p *Packager) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if !strings.ContainsRune(path, filepath.Separator) && !strings.Contains(path, "/") {
		path = filepath.Join(p.outputDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	outDir, err := filepath.Abs(p.outputDir)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if filepath.Dir(abs) != outDir {
		return "", errors.NewInvalidRequest(fmt.Sprintf("path must be inside the packer output directory %s", outDir))
	}
	if filepath.Ext(abs) != ".xml" {
		return "", errors.NewInvalidRequest("path must have .xml extension")
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("path must not be a symlink")
	}
	return abs, nil
}

func mergePatterns(a, b []string) []string {
	var out []string
	for _, s := range append(slices.Clone(a), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
	s = strings.Trim(s, "-.")
	if s == "" {
		return "repo"
	}
	return s
}
