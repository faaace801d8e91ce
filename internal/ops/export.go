package ops

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/contextitem"
)

// ExportInput contains parameters for the Export operation.
//
// With no Path and ToFile unset the text is returned in the output.
// ToFile without a Path writes ~/.buddy/exports/<workspace>-<timestamp>.md.
type ExportInput struct {
	Workspace string
	Path      string
	ToFile    bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Workspace  string `json:"workspace"`
	Path       string `json:"path,omitempty"`
	Content    string `json:"content,omitempty"`
	Items      int    `json:"items"`
	Tokens     int    `json:"tokens"`
	Bytes      int    `json:"bytes"`
	ExportedAt string `json:"exported_at"`
}

// Export renders every item's full content as one Markdown document, in
// eviction order. The collection is not changed.
func (d *Deps) Export(ctx context.Context, input ExportInput) (out *ExportOutput, err error) {
	defer d.observe("export", time.Now(), &err)

	norm, _ := workspaceName(input.Workspace)
	now := d.now()

	path := input.Path
	if path == "" && input.ToFile {
		if path, err = defaultOutputPath(norm, now, ".md"); err != nil {
			return nil, err
		}
	}
	if path != "" {
		// Default paths are validated too; they embed the workspace name.
		if err := ValidatePath(path, PathCheckWrite, d.Config, ExportExtensions...); err != nil {
			return nil, err
		}
	}

	acc, err := d.view(ctx, "export", input.Workspace)
	if err != nil {
		return nil, err
	}
	text := acc.Export()

	out = &ExportOutput{
		Workspace:  norm,
		Items:      acc.Len(),
		Tokens:     acc.TotalWeight(),
		Bytes:      len(text),
		ExportedAt: contextitem.FormatTime(now),
	}
	if path == "" {
		out.Content = text
		return out, nil
	}

	if err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	}); err != nil {
		return nil, err
	}
	out.Path = path
	d.logger().Info("context exported", zap.String("workspace", norm), zap.String("path", path), zap.Int("items", out.Items))
	return out, nil
}
