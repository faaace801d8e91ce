package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
)

// RestoreMode controls how a backup meets the existing collection.
type RestoreMode string

const (
	RestoreReplace RestoreMode = "replace" // swap the whole collection (atomic)
	RestoreAppend  RestoreMode = "append"  // add each record as a new item
)

// maxBackupLine bounds one JSONL record.
const maxBackupLine = 64 << 20

// RestoreInput contains parameters for the Restore operation.
type RestoreInput struct {
	Workspace string
	Path      string
	Mode      RestoreMode // default: replace
	Evict     EvictMode   // append only
	Confirmer accumulator.Confirmer
}

// RestoreOutput contains the result of the Restore operation.
type RestoreOutput struct {
	Workspace string                    `json:"workspace"`
	Mode      RestoreMode               `json:"mode"`
	Restored  int                       `json:"restored"`
	Skipped   int                       `json:"skipped"`
	Evicted   []contextitem.ItemSummary `json:"evicted"`
	Errors    []RestoreError            `json:"errors"`
	Stats     accumulator.Stats         `json:"stats"`
}

// RestoreError describes a backup line that could not be restored.
type RestoreError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type backupLine struct {
	line   int
	record contextitem.BackupRecord
}

// Restore loads a JSONL backup into a workspace.
//
// Replace is all-or-nothing: any bad line, or a total over capacity, leaves
// the workspace untouched. Append skips bad lines and adds the rest as new
// items under the eviction policy; a declined or impossible eviction aborts
// the whole restore.
func (d *Deps) Restore(ctx context.Context, input RestoreInput) (out *RestoreOutput, err error) {
	defer d.observe("restore", time.Now(), &err)

	mode := input.Mode
	if mode == "" {
		mode = RestoreReplace
	}
	if mode != RestoreReplace && mode != RestoreAppend {
		return nil, errors.NewInvalidRequest("mode must be one of: replace, append")
	}
	if err := ValidatePath(input.Path, PathCheckRead, d.Config, BackupExtensions...); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open backup: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseBackup(file)
	norm, _ := workspaceName(input.Workspace)
	out = &RestoreOutput{
		Workspace: norm,
		Mode:      mode,
		Evicted:   []contextitem.ItemSummary{},
		Errors:    parseErrors,
	}
	if out.Errors == nil {
		out.Errors = []RestoreError{}
	}

	if mode == RestoreReplace {
		if len(parseErrors) > 0 {
			out.Skipped = len(parseErrors)
			return out, nil
		}
		items := make([]contextitem.Item, len(records))
		for i, r := range records {
			items[i] = r.record.ToItem()
		}
		out.Stats, err = d.mutate(ctx, "restore", input.Workspace, func(acc *accumulator.Accumulator) (bool, error) {
			return true, acc.Restore(items)
		})
		if err != nil {
			return nil, err
		}
		out.Restored = len(items)
	} else {
		out.Skipped = len(parseErrors)
		confirmer := input.Evict.confirmer(input.Confirmer)
		evictedWeight := 0
		out.Stats, err = d.mutate(ctx, "restore", input.Workspace, func(acc *accumulator.Accumulator) (bool, error) {
			for _, r := range records {
				res, err := acc.Add(ctx, accumulator.AddInput{
					Kind:        r.record.Kind,
					DisplayName: r.record.DisplayName,
					SourcePath:  r.record.SourcePath,
					Content:     r.record.Content,
				}, confirmer)
				if err != nil {
					be := errors.As(err)
					switch be.Code {
					case errors.ErrInvalidRequest, errors.ErrItemTooLarge:
						out.Errors = append(out.Errors, RestoreError{Line: r.line, ID: r.record.ID, Code: string(be.Code), Message: be.Message})
						out.Skipped++
						continue
					}
					return false, err
				}
				out.Restored++
				out.Evicted = append(out.Evicted, toSummaries(res.Evicted)...)
				evictedWeight += res.EvictedWeight
			}
			return out.Restored > 0, nil
		})
		if err != nil {
			return nil, err
		}
		d.Metrics.RecordEviction(len(out.Evicted), evictedWeight)
	}

	d.logger().Info("workspace restored",
		zap.String("workspace", norm),
		zap.String("mode", string(mode)),
		zap.Int("restored", out.Restored),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

// parseBackup reads every record line, skipping the header.
func parseBackup(r io.Reader) ([]backupLine, []RestoreError) {
	var records []backupLine
	var parseErrors []RestoreError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBackupLine)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record contextitem.BackupRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, RestoreError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if record.BuddyBackup {
			continue
		}
		if record.ID == "" {
			parseErrors = append(parseErrors, RestoreError{Line: lineNum, Code: "INVALID_RECORD", Message: "missing id field"})
			continue
		}
		if !record.Kind.Valid() {
			parseErrors = append(parseErrors, RestoreError{
				Line:    lineNum,
				ID:      record.ID,
				Code:    "INVALID_RECORD",
				Message: fmt.Sprintf("invalid kind %q", record.Kind),
			})
			continue
		}
		records = append(records, backupLine{line: lineNum, record: record})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, RestoreError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return records, parseErrors
}
