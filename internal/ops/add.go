package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
	"github.com/hpungsan/buddy/internal/pack"
)

// EvictMode controls what happens when an add needs to evict older items.
type EvictMode string

const (
	EvictAsk EvictMode = "ask" // use the caller's confirmer; fail if there is none
	EvictYes EvictMode = "yes"
	EvictNo  EvictMode = "no"
)

// ParseEvictMode validates an eviction mode. Empty means ask.
func ParseEvictMode(s string) (EvictMode, error) {
	switch m := EvictMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return EvictAsk, nil
	case EvictAsk, EvictYes, EvictNo:
		return m, nil
	default:
		return "", errors.NewInvalidRequest(fmt.Sprintf("evict must be ask, yes or no (got %q)", s))
	}
}

func (m EvictMode) confirmer(c accumulator.Confirmer) accumulator.Confirmer {
	switch m {
	case EvictYes:
		return accumulator.AlwaysEvict
	case EvictNo:
		return accumulator.NeverEvict
	default:
		return c
	}
}

// AddInput contains parameters for the Add operation.
//
// Exactly one source is used: Content (a selection or piped text) or Path
// (a file, optionally narrowed by Lines).
type AddInput struct {
	Workspace   string
	Kind        contextitem.Kind // optional, inferred from the source
	DisplayName string
	SourcePath  string
	Content     *string
	Path        string
	Lines       string // "start:end", 1-based inclusive
	Evict       EvictMode
	Confirmer   accumulator.Confirmer // consulted when Evict is ask
}

// AddOutput contains the result of the Add operation.
type AddOutput struct {
	Workspace     string                    `json:"workspace"`
	Item          contextitem.ItemSummary   `json:"item"`
	Evicted       []contextitem.ItemSummary `json:"evicted"`
	EvictedTokens int                       `json:"evicted_tokens"`
	Stats         accumulator.Stats         `json:"stats"`
}

// Add reads the requested source and appends it to the workspace.
func (d *Deps) Add(ctx context.Context, input AddInput) (out *AddOutput, err error) {
	defer d.observe("add", time.Now(), &err)

	in, err := d.resolveAddSource(input)
	if err != nil {
		return nil, err
	}
	return d.addItem(ctx, "add", input.Workspace, in, input.Evict, input.Confirmer)
}

func (d *Deps) resolveAddSource(input AddInput) (accumulator.AddInput, error) {
	lines, err := ParseLineRange(input.Lines)
	if err != nil {
		return accumulator.AddInput{}, err
	}

	in := accumulator.AddInput{
		Kind:        input.Kind,
		DisplayName: strings.TrimSpace(input.DisplayName),
		SourcePath:  strings.TrimSpace(input.SourcePath),
	}

	switch {
	case input.Content != nil && input.Path != "":
		return in, errors.NewInvalidRequest("provide either content or path, not both")

	case input.Content != nil:
		if lines != nil {
			return in, errors.NewInvalidRequest("lines applies only to path")
		}
		in.Content = *input.Content
		if in.Kind == "" {
			in.Kind = contextitem.KindSelection
		}

	case input.Path != "":
		abs, content, err := readSourceFile(input.Path, d.capacity(), lines != nil)
		if err != nil {
			return in, err
		}
		if in.SourcePath == "" {
			in.SourcePath = abs
		}
		in.Content = content
		if lines != nil {
			if in.Content, err = sliceLines(content, lines); err != nil {
				return in, err
			}
			if in.DisplayName == "" {
				in.DisplayName = selectionName(abs, lines)
			}
		}
		if in.Kind == "" {
			in.Kind = contextitem.KindFile
			if lines != nil {
				in.Kind = contextitem.KindSelection
			}
		}

	default:
		return in, errors.NewInvalidRequest("content or path is required")
	}

	return in, nil
}

// addItem runs one accumulator add against the stored workspace.
func (d *Deps) addItem(ctx context.Context, op, workspace string, in accumulator.AddInput, mode EvictMode, confirmer accumulator.Confirmer) (*AddOutput, error) {
	var res *accumulator.AddResult
	stats, err := d.mutate(ctx, op, workspace, func(acc *accumulator.Accumulator) (bool, error) {
		var err error
		res, err = acc.Add(ctx, in, mode.confirmer(confirmer))
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}

	d.Metrics.RecordEviction(len(res.Evicted), res.EvictedWeight)
	norm, _ := workspaceName(workspace)
	d.logger().Info("context item added",
		zap.String("workspace", norm),
		zap.String("id", res.Item.ID),
		zap.String("kind", string(res.Item.Kind)),
		zap.Int("size", res.Item.SizeEstimate),
		zap.Int("evicted", len(res.Evicted)))

	return &AddOutput{
		Workspace:     norm,
		Item:          res.Item.ToSummary(),
		Evicted:       toSummaries(res.Evicted),
		EvictedTokens: res.EvictedWeight,
		Stats:         stats,
	}, nil
}

// AddDirectoryInput contains parameters for the AddDirectory operation.
type AddDirectoryInput struct {
	Workspace   string
	Dir         string
	DisplayName string
	Include     []string
	Ignore      []string
	Evict       EvictMode
	Confirmer   accumulator.Confirmer
}

// AddDirectoryOutput is an AddOutput plus the packed file it came from.
type AddDirectoryOutput struct {
	AddOutput
	Package *pack.PackOutput `json:"package"`
}

// AddDirectory packs a directory and adds the packed output as one item.
func (d *Deps) AddDirectory(ctx context.Context, input AddDirectoryInput) (out *AddDirectoryOutput, err error) {
	defer d.observe("add_directory", time.Now(), &err)

	packed, err := d.runPacker(ctx, pack.PackInput{Dir: input.Dir, Include: input.Include, Ignore: input.Ignore})
	if err != nil {
		return nil, err
	}
	content, err := d.Packer.Read(packed.Path)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		name = contextitem.DefaultDisplayName("", packed.Dir) + "/"
	}
	added, err := d.addItem(ctx, "add_directory", input.Workspace, accumulator.AddInput{
		Kind:        contextitem.KindDirectory,
		DisplayName: name,
		SourcePath:  packed.Dir,
		Content:     content,
	}, input.Evict, input.Confirmer)
	if err != nil {
		return nil, err
	}
	return &AddDirectoryOutput{AddOutput: *added, Package: packed}, nil
}

// runPacker runs the packer and records the outcome.
func (d *Deps) runPacker(ctx context.Context, in pack.PackInput) (*pack.PackOutput, error) {
	if d.Packer == nil {
		return nil, errors.NewPackerUnavailable(pack.DefaultCommand)
	}
	start := time.Now()
	out, err := d.Packer.Package(ctx, in)
	result := "ok"
	if err != nil {
		result = strings.ToLower(string(errors.As(err).Code))
	}
	d.Metrics.RecordPackerRun(result, time.Since(start))
	return out, err
}
