package ops

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/db"
)

// ClearInput contains parameters for the Clear operation.
type ClearInput struct {
	Workspace string
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Workspace string `json:"workspace"`
	Removed   int    `json:"removed"`
}

// Clear empties a workspace. It deletes rows directly rather than loading the
// collection, so it also recovers a workspace heavier than the current
// capacity. Clearing an empty workspace succeeds with Removed 0.
func (d *Deps) Clear(ctx context.Context, input ClearInput) (out *ClearOutput, err error) {
	defer d.observe("clear", time.Now(), &err)

	norm, _ := workspaceName(input.Workspace)
	var removed int
	err = db.WithTx(ctx, d.DB, func(tx *sql.Tx) error {
		var err error
		removed, err = db.DeleteWorkspace(ctx, tx, norm)
		return err
	})
	if err != nil {
		return nil, cancelled(ctx, "clear", err)
	}

	d.Metrics.SetWorkspace(norm, 0, 0)
	d.logger().Info("workspace cleared", zap.String("workspace", norm), zap.Int("removed", removed))
	return &ClearOutput{Workspace: norm, Removed: removed}, nil
}
