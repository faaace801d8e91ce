package ops

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
)

// RemoveInput contains parameters for the Remove operation.
type RemoveInput struct {
	Workspace string
	ID        string
}

// RemoveOutput contains the result of the Remove operation.
type RemoveOutput struct {
	Workspace string                  `json:"workspace"`
	Removed   contextitem.ItemSummary `json:"removed"`
	Stats     accumulator.Stats       `json:"stats"`
}

// Remove deletes one item by ID. The rest keep their order.
func (d *Deps) Remove(ctx context.Context, input RemoveInput) (out *RemoveOutput, err error) {
	defer d.observe("remove", time.Now(), &err)

	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	var removed *contextitem.Item
	stats, err := d.mutate(ctx, "remove", input.Workspace, func(acc *accumulator.Accumulator) (bool, error) {
		var err error
		removed, err = acc.Remove(id)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}

	norm, _ := workspaceName(input.Workspace)
	d.logger().Info("context item removed", zap.String("workspace", norm), zap.String("id", id))
	return &RemoveOutput{
		Workspace: norm,
		Removed:   removed.ToSummary(),
		Stats:     stats,
	}, nil
}
