package ops

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
)

// List orderings.
const (
	SortOldest = "oldest" // eviction order, the default
	SortNewest = "newest"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Workspace string
	Sort      string
	Limit     int
	Offset    int
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Workspace  string                    `json:"workspace"`
	Items      []contextitem.ItemSummary `json:"items"`
	Pagination Pagination                `json:"pagination"`
	Stats      accumulator.Stats         `json:"stats"`
}

// List returns item summaries (no content) for a workspace.
func (d *Deps) List(ctx context.Context, input ListInput) (out *ListOutput, err error) {
	defer d.observe("list", time.Now(), &err)

	switch input.Sort {
	case "", SortOldest, SortNewest:
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("sort must be %s or %s", SortOldest, SortNewest))
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	acc, err := d.view(ctx, "list", input.Workspace)
	if err != nil {
		return nil, err
	}

	items := acc.Items()
	if input.Sort == SortNewest {
		slices.Reverse(items)
	}
	total := len(items)
	page := items[min(offset, total):min(offset+limit, total)]

	norm, _ := workspaceName(input.Workspace)
	return &ListOutput{
		Workspace: norm,
		Items:     toSummaries(page),
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(page) < total,
			Total:   total,
		},
		Stats: acc.Stats(),
	}, nil
}
