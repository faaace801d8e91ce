package ops

import (
	"context"
	"time"

	"github.com/hpungsan/buddy/internal/db"
)

// WorkspacesOutput lists every non-empty workspace.
type WorkspacesOutput struct {
	Workspaces []db.WorkspaceInfo `json:"workspaces"`
	Capacity   int                `json:"capacity"`
}

// Workspaces lists stored workspaces, most recently used first.
func (d *Deps) Workspaces(ctx context.Context) (out *WorkspacesOutput, err error) {
	defer d.observe("workspaces", time.Now(), &err)

	infos, err := db.ListWorkspaces(ctx, d.DB)
	if err != nil {
		return nil, cancelled(ctx, "workspaces", err)
	}
	return &WorkspacesOutput{Workspaces: infos, Capacity: d.capacity()}, nil
}
