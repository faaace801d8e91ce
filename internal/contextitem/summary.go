package contextitem

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// TimeLayout is used wherever an item timestamp is rendered.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// PreviewItems is the number of most recent items shown in the summary preview.
const PreviewItems = 3

// PreviewChars is the preview length in characters before truncation.
const PreviewChars = 200

// ItemSummary represents an item's metadata without its content.
// Used for browse operations (list, workspaces, dashboard).
type ItemSummary struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	DisplayName  string `json:"display_name"`
	SourcePath   string `json:"source_path,omitempty"`
	SizeEstimate int    `json:"size_estimate"`
	Chars        int    `json:"chars"`
	AddedAt      int64  `json:"added_at"`
}

// ToSummary strips the content from an item.
func (it *Item) ToSummary() ItemSummary {
	return ItemSummary{
		ID:           it.ID,
		Kind:         it.Kind,
		DisplayName:  it.DisplayName,
		SourcePath:   it.SourcePath,
		SizeEstimate: it.SizeEstimate,
		Chars:        CountChars(it.Content),
		AddedAt:      it.AddedAt.UnixMilli(),
	}
}

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// UsagePercent returns round(total/capacity*100). A non-positive capacity yields 0.
func UsagePercent(total, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(capacity) * 100))
}

// Preview truncates content to PreviewChars characters, adding "..." when cut.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewChars {
		return content
	}
	return string(runes[:PreviewChars]) + "..."
}

// RenderSummary produces the Markdown report for a collection. The output
// depends only on its arguments.
func RenderSummary(items []Item, total, capacity int) string {
	var b strings.Builder

	b.WriteString("# Context Summary\n\n")
	fmt.Fprintf(&b, "**Total Items:** %d\n", len(items))
	fmt.Fprintf(&b, "**Total Tokens:** %s / %s\n",
		humanize.Comma(int64(total)), humanize.Comma(int64(capacity)))
	fmt.Fprintf(&b, "**Usage:** %d%%\n\n", UsagePercent(total, capacity))

	b.WriteString("## Items\n\n")
	if len(items) == 0 {
		b.WriteString("_No context items._\n")
		return b.String()
	}
	for _, it := range items {
		fmt.Fprintf(&b, "- **%s** (%s) - %d tokens - Added: %s\n",
			it.DisplayName, it.Kind, it.SizeEstimate, FormatTime(it.AddedAt))
	}

	b.WriteString("\n## Recent Content Preview\n")
	start := max(len(items)-PreviewItems, 0)
	for _, it := range items[start:] {
		preview := Preview(it.Content)
		fence := Fence(preview)
		fmt.Fprintf(&b, "\n### %s\n\n%s\n%s\n%s\n", it.DisplayName, fence, preview, fence)
	}

	return b.String()
}
