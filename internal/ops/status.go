package ops

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/models"
	"github.com/hpungsan/buddy/internal/pack"
)

// recentPackages is how many packed files Status reports.
const recentPackages = 5

// StatusInput contains parameters for the Status operation.
type StatusInput struct {
	Workspace string
}

// PackerStatus reports whether the packer can run.
type PackerStatus struct {
	Command   string             `json:"command"`
	Installed bool               `json:"installed"`
	Version   string             `json:"version,omitempty"`
	OutputDir string             `json:"output_dir"`
	Recent    []pack.PackageInfo `json:"recent"`
}

// StatusOutput is the dashboard view of one workspace and its tooling.
type StatusOutput struct {
	Workspace  string               `json:"workspace"`
	Stats      accumulator.Stats    `json:"stats"`
	Workspaces int                  `json:"workspaces"`
	Packer     *PackerStatus        `json:"packer,omitempty"`
	Models     []models.ModelStatus `json:"models,omitempty"`
	Fits       []models.Fit         `json:"fits,omitempty"`
}

// Status gathers workspace usage, packer availability and model setup
// concurrently.
func (d *Deps) Status(ctx context.Context, input StatusInput) (out *StatusOutput, err error) {
	defer d.observe("status", time.Now(), &err)

	norm, _ := workspaceName(input.Workspace)
	out = &StatusOutput{Workspace: norm}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		acc, err := d.view(gctx, "status", input.Workspace)
		if err != nil {
			return err
		}
		out.Stats = acc.Stats()
		return nil
	})

	var workspaces int
	g.Go(func() error {
		ws, err := d.Workspaces(gctx)
		if err != nil {
			return err
		}
		workspaces = len(ws.Workspaces)
		return nil
	})

	if d.Packer != nil {
		ps := &PackerStatus{Command: d.Packer.Command(), OutputDir: d.Packer.OutputDir()}
		out.Packer = ps
		g.Go(func() error {
			ps.Installed, ps.Version = d.Packer.IsInstalled(gctx)
			return nil
		})
		g.Go(func() error {
			pkgs, err := d.Packer.List()
			if err != nil {
				return err
			}
			ps.Recent = pkgs[:min(len(pkgs), recentPackages)]
			return nil
		})
	}

	if d.Models != nil {
		g.Go(func() error {
			out.Models = d.Models.Statuses()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	out.Workspaces = workspaces
	if d.Models != nil {
		out.Fits = d.Models.FitAll(out.Stats.Total)
	}
	return out, nil
}
