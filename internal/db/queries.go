package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
)

// WorkspaceInfo summarizes one stored workspace.
type WorkspaceInfo struct {
	Workspace string `json:"workspace"`
	Items     int    `json:"items"`
	Total     int    `json:"total"`
	LastAdded int64  `json:"last_added"`
}

const itemColumns = `id, seq, kind, display_name, source_path, content, size_estimate, added_at`

// LoadWorkspace returns a workspace's items in insertion order.
func LoadWorkspace(ctx context.Context, q Querier, workspaceNorm string) ([]contextitem.Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM context_items
		WHERE workspace_norm = ?
		ORDER BY seq ASC
	`, workspaceNorm)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("load workspace %q: %w", workspaceNorm, err))
	}
	defer rows.Close()

	var items []contextitem.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return items, nil
}

// GetItem reads a single item without loading the whole workspace.
func GetItem(ctx context.Context, q Querier, workspaceNorm, id string) (*contextitem.Item, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM context_items
		WHERE workspace_norm = ? AND id = ?
	`, workspaceNorm, id)

	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return it, nil
}

// SaveWorkspace replaces a workspace's stored items with items, keeping
// their order. Run it inside the transaction that loaded the workspace.
func SaveWorkspace(ctx context.Context, q Querier, workspaceNorm, workspaceRaw string, items []contextitem.Item) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM context_items WHERE workspace_norm = ?`, workspaceNorm); err != nil {
		return errors.NewInternal(fmt.Errorf("save workspace %q: %w", workspaceNorm, err))
	}

	query := `
		INSERT INTO context_items (
			workspace_norm, workspace_raw, id, seq, kind, display_name,
			source_path, content, size_estimate, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, it := range items {
		_, err := q.ExecContext(ctx, query,
			workspaceNorm, workspaceRaw, it.ID, i+1, string(it.Kind), it.DisplayName,
			it.SourcePath, it.Content, it.SizeEstimate, it.AddedAt.UnixMilli(),
		)
		if err != nil {
			return errors.NewInternal(fmt.Errorf("insert item %s: %w", it.ID, err))
		}
	}
	return nil
}

// DeleteWorkspace removes every item of a workspace and returns the count.
func DeleteWorkspace(ctx context.Context, q Querier, workspaceNorm string) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM context_items WHERE workspace_norm = ?`, workspaceNorm)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// ListWorkspaces returns every non-empty workspace, most recently used first.
func ListWorkspaces(ctx context.Context, q Querier) ([]WorkspaceInfo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT workspace_norm, COUNT(*), COALESCE(SUM(size_estimate), 0), MAX(added_at)
		FROM context_items
		GROUP BY workspace_norm
		ORDER BY MAX(added_at) DESC, workspace_norm ASC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	infos := []WorkspaceInfo{}
	for rows.Next() {
		var info WorkspaceInfo
		if err := rows.Scan(&info.Workspace, &info.Items, &info.Total, &info.LastAdded); err != nil {
			return nil, errors.NewInternal(err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return infos, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*contextitem.Item, error) {
	var (
		it      contextitem.Item
		kind    string
		seq     int64
		addedAt int64
	)
	if err := row.Scan(&it.ID, &seq, &kind, &it.DisplayName, &it.SourcePath,
		&it.Content, &it.SizeEstimate, &addedAt); err != nil {
		return nil, err
	}
	it.Kind = contextitem.Kind(kind)
	it.Seq = uint64(seq)
	it.AddedAt = time.UnixMilli(addedAt).UTC()
	return &it, nil
}
