package ops

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
)

// BackupInput contains parameters for the Backup operation.
type BackupInput struct {
	Workspace string
	Path      string // optional, default: ~/.buddy/exports/<workspace>-<timestamp>.jsonl
}

// BackupOutput contains the result of the Backup operation.
type BackupOutput struct {
	Workspace  string `json:"workspace"`
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Backup writes a workspace to a JSONL file: one header line, then one item
// per line in eviction order.
func (d *Deps) Backup(ctx context.Context, input BackupInput) (out *BackupOutput, err error) {
	defer d.observe("backup", time.Now(), &err)

	norm, _ := workspaceName(input.Workspace)
	now := d.now()

	path := input.Path
	if path == "" {
		if path, err = defaultOutputPath(norm, now, ".jsonl"); err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(path, PathCheckWrite, d.Config, BackupExtensions...); err != nil {
		return nil, err
	}

	acc, err := d.view(ctx, "backup", input.Workspace)
	if err != nil {
		return nil, err
	}
	items := acc.Items()

	err = writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		header := contextitem.BackupRecord{
			BuddyBackup:   true,
			SchemaVersion: contextitem.BackupSchemaVersion,
			Workspace:     norm,
			ExportedAt:    now.UnixMilli(),
		}
		if err := enc.Encode(header); err != nil {
			return errors.NewInternal(err)
		}
		for _, it := range items {
			if ctx.Err() != nil {
				return errors.NewCancelled("backup")
			}
			if err := enc.Encode(contextitem.ToBackupRecord(it)); err != nil {
				return errors.NewInternal(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger().Info("workspace backed up", zap.String("workspace", norm), zap.String("path", path), zap.Int("count", len(items)))
	return &BackupOutput{
		Workspace:  norm,
		Path:       path,
		Count:      len(items),
		ExportedAt: now.UnixMilli(),
	}, nil
}
