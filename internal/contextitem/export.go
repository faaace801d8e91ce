package contextitem

import (
	"fmt"
	"strings"
	"time"
)

// Fence returns a backtick fence longer than any backtick run inside content,
// so the content can be embedded verbatim in a Markdown code block.
func Fence(content string) string {
	longest, run := 0, 0
	for i := 0; i < len(content); i++ {
		if content[i] == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}

// RenderExport concatenates a header with a labeled block per item carrying
// the full, untruncated content.
func RenderExport(items []Item, total int, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("# AI Code Buddy Context\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", FormatTime(generatedAt))
	fmt.Fprintf(&b, "Total Items: %d\n", len(items))
	fmt.Fprintf(&b, "Total Tokens: %d\n", total)

	for _, it := range items {
		fence := Fence(it.Content)
		fmt.Fprintf(&b, "\n## %s (%s)\n\n", it.DisplayName, it.Kind)
		fmt.Fprintf(&b, "ID: %s\n", it.ID)
		fmt.Fprintf(&b, "Path: %s\n", it.SourcePath)
		fmt.Fprintf(&b, "Added: %s\n", FormatTime(it.AddedAt))
		fmt.Fprintf(&b, "Tokens: %d\n\n", it.SizeEstimate)
		fmt.Fprintf(&b, "%s\n%s\n%s\n", fence, it.Content, fence)
	}

	return b.String()
}

// BackupRecord represents an item in JSONL backup format.
// The first line of a backup file is a header record.
type BackupRecord struct {
	// Header detection field - true only for header line
	BuddyBackup bool `json:"_buddy_backup,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	Workspace     string `json:"workspace,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	// Item fields
	ID           string `json:"id,omitempty"`
	Kind         Kind   `json:"kind,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	SourcePath   string `json:"source_path,omitempty"`
	Content      string `json:"content,omitempty"`
	AddedAt      int64  `json:"added_at,omitempty"`      // unix milliseconds
	SizeEstimate int    `json:"size_estimate,omitempty"` // IGNORED on restore, recomputed
}

// BackupSchemaVersion is written into backup headers.
const BackupSchemaVersion = "1.0"

// ToBackupRecord converts an item for backup.
func ToBackupRecord(it Item) BackupRecord {
	return BackupRecord{
		ID:           it.ID,
		Kind:         it.Kind,
		DisplayName:  it.DisplayName,
		SourcePath:   it.SourcePath,
		Content:      it.Content,
		AddedAt:      it.AddedAt.UnixMilli(),
		SizeEstimate: it.SizeEstimate,
	}
}

// ToItem converts a backup record to an item, recomputing the size estimate.
func (r *BackupRecord) ToItem() Item {
	return Item{
		ID:           r.ID,
		Kind:         r.Kind,
		DisplayName:  r.DisplayName,
		SourcePath:   r.SourcePath,
		Content:      r.Content,
		AddedAt:      time.UnixMilli(r.AddedAt).UTC(),
		SizeEstimate: EstimateSize(r.Content),
	}
}
