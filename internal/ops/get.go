package ops

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/buddy/internal/db"
	"github.com/hpungsan/buddy/internal/errors"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	Workspace string
	ID        string
}

// Get returns one item with its content.
func (d *Deps) Get(ctx context.Context, input GetInput) (out *ItemDetail, err error) {
	defer d.observe("get", time.Now(), &err)

	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	norm, _ := workspaceName(input.Workspace)
	it, err := db.GetItem(ctx, d.DB, norm, id)
	if err != nil {
		return nil, cancelled(ctx, "get", err)
	}
	return &ItemDetail{ItemSummary: it.ToSummary(), Content: it.Content}, nil
}
