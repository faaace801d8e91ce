package ops

import (
	"context"
	"time"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/models"
)

// SummaryInput contains parameters for the Summary operation.
type SummaryInput struct {
	Workspace string
}

// SummaryOutput contains the rendered summary and how the collection fits
// the known models.
type SummaryOutput struct {
	Workspace string            `json:"workspace"`
	Markdown  string            `json:"markdown"`
	Stats     accumulator.Stats `json:"stats"`
	Fits      []models.Fit      `json:"fits,omitempty"`
}

// Summary renders the workspace summary. It never mutates the collection.
func (d *Deps) Summary(ctx context.Context, input SummaryInput) (out *SummaryOutput, err error) {
	defer d.observe("summary", time.Now(), &err)

	acc, err := d.view(ctx, "summary", input.Workspace)
	if err != nil {
		return nil, err
	}
	norm, _ := workspaceName(input.Workspace)
	out = &SummaryOutput{
		Workspace: norm,
		Markdown:  acc.RenderSummary(),
		Stats:     acc.Stats(),
	}
	if d.Models != nil {
		out.Fits = d.Models.FitAll(out.Stats.Total)
	}
	return out, nil
}
