package ops

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/errors"
	"github.com/hpungsan/buddy/internal/pack"
)

// PackInput contains parameters for the Pack operation.
type PackInput struct {
	Dir     string
	Include []string
	Ignore  []string
}

// PackOutput is a packed file plus the stats the packer reported.
type PackOutput struct {
	pack.PackOutput
	Stats *pack.Stats `json:"stats,omitempty"`
}

// Pack runs the packer over a directory without adding the result.
func (d *Deps) Pack(ctx context.Context, input PackInput) (out *PackOutput, err error) {
	defer d.observe("pack", time.Now(), &err)

	packed, err := d.runPacker(ctx, pack.PackInput(input))
	if err != nil {
		return nil, err
	}
	out = &PackOutput{PackOutput: *packed}
	if stats, err := d.Packer.Stats(packed.Path); err == nil {
		out.Stats = stats
	} else {
		d.logger().Warn("could not read packer stats", zap.String("path", packed.Path), zap.Error(err))
	}
	return out, nil
}

// PackagesOutput lists previously packed files.
type PackagesOutput struct {
	OutputDir string             `json:"output_dir"`
	Packages  []pack.PackageInfo `json:"packages"`
}

// Packages lists packed files, newest first. Limit 0 means all.
func (d *Deps) Packages(ctx context.Context, limit int) (out *PackagesOutput, err error) {
	defer d.observe("packages", time.Now(), &err)

	if d.Packer == nil {
		return nil, errors.NewPackerUnavailable(pack.DefaultCommand)
	}
	pkgs, err := d.Packer.List()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(pkgs) > limit {
		pkgs = pkgs[:limit]
	}
	return &PackagesOutput{OutputDir: d.Packer.OutputDir(), Packages: pkgs}, nil
}

// PackStats parses the statistics out of a packed file.
func (d *Deps) PackStats(ctx context.Context, path string) (out *pack.Stats, err error) {
	defer d.observe("pack_stats", time.Now(), &err)

	if d.Packer == nil {
		return nil, errors.NewPackerUnavailable(pack.DefaultCommand)
	}
	return d.Packer.Stats(path)
}

// PackDeleteOutput contains the result of the PackDelete operation.
type PackDeleteOutput struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
}

// PackDelete removes a packed file from the output directory.
func (d *Deps) PackDelete(ctx context.Context, path string) (out *PackDeleteOutput, err error) {
	defer d.observe("pack_delete", time.Now(), &err)

	if d.Packer == nil {
		return nil, errors.NewPackerUnavailable(pack.DefaultCommand)
	}
	if err := d.Packer.Delete(path); err != nil {
		return nil, err
	}
	return &PackDeleteOutput{Path: path, Deleted: true}, nil
}
