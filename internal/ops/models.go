package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/hpungsan/buddy/internal/errors"
	"github.com/hpungsan/buddy/internal/models"
)

// ModelsOutput lists the model catalog with setup status.
type ModelsOutput struct {
	Default string               `json:"default"`
	Models  []models.ModelStatus `json:"models"`
}

// ListModels reports every known model and whether it is set up.
func (d *Deps) ListModels(ctx context.Context) (out *ModelsOutput, err error) {
	defer d.observe("models", time.Now(), &err)

	reg, err := d.models()
	if err != nil {
		return nil, err
	}
	return &ModelsOutput{Default: d.defaultModel(), Models: reg.Statuses()}, nil
}

// ModelFitInput contains parameters for the ModelFit operation.
type ModelFitInput struct {
	Workspace string
	Model     string // default: config default_model
	Precise   bool   // tokenize the export instead of using the estimate
}

// ModelFitOutput reports whether a workspace fits a model.
type ModelFitOutput struct {
	Workspace string     `json:"workspace"`
	Method    string     `json:"method"` // "estimate" or "tokenizer"
	Fit       models.Fit `json:"fit"`
}

// ModelFit checks a workspace against a model's context window.
func (d *Deps) ModelFit(ctx context.Context, input ModelFitInput) (out *ModelFitOutput, err error) {
	defer d.observe("model_fit", time.Now(), &err)

	reg, err := d.models()
	if err != nil {
		return nil, err
	}
	id := input.Model
	if id == "" {
		id = d.defaultModel()
	}
	if _, err := reg.Get(id); err != nil {
		return nil, err
	}

	acc, err := d.view(ctx, "model_fit", input.Workspace)
	if err != nil {
		return nil, err
	}

	method, tokens := "estimate", acc.TotalWeight()
	if input.Precise {
		if tokens, err = reg.CountTokens(id, acc.Export()); err != nil {
			return nil, err
		}
		method = "tokenizer"
	}
	fit, err := reg.Fit(id, tokens)
	if err != nil {
		return nil, err
	}

	norm, _ := workspaceName(input.Workspace)
	return &ModelFitOutput{Workspace: norm, Method: method, Fit: *fit}, nil
}

func (d *Deps) models() (*models.Registry, error) {
	if d.Models == nil {
		return nil, errors.NewInternal(fmt.Errorf("model registry is not configured"))
	}
	return d.Models, nil
}

func (d *Deps) defaultModel() string {
	if d.Config == nil || d.Config.DefaultModel == "" {
		return "claude-sonnet-4"
	}
	return d.Config.DefaultModel
}
