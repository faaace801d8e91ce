package contextitem

import (
	"path/filepath"
	"slices"
	"time"
)

// Kind identifies where a context item's content came from.
type Kind string

const (
	KindFile      Kind = "file"
	KindSelection Kind = "selection"
	KindDirectory Kind = "directory"
)

// Kinds lists all valid kinds in display order.
var Kinds = []Kind{KindFile, KindSelection, KindDirectory}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Item is a captured piece of content shared with a chat model.
// Items are never mutated after creation.
type Item struct {
	// ID is a ULID assigned at insertion time
	ID string

	// Kind is file, selection or directory
	Kind Kind

	// DisplayName is the human-readable label
	DisplayName string

	// SourcePath is the originating location (advisory, never re-validated)
	SourcePath string

	// Content is the captured text payload
	Content string

	// AddedAt is the insertion time and the primary eviction key
	AddedAt time.Time

	// Seq breaks AddedAt ties; it increases with every insertion
	Seq uint64

	// SizeEstimate is the item's weight against the capacity budget
	SizeEstimate int
}

// DefaultDisplayName returns name if set, otherwise the base name of path.
func DefaultDisplayName(name, path string) string {
	if name != "" {
		return name
	}
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// OlderThan reports whether it sorts before other in eviction order.
func (it *Item) OlderThan(other *Item) bool {
	if !it.AddedAt.Equal(other.AddedAt) {
		return it.AddedAt.Before(other.AddedAt)
	}
	return it.Seq < other.Seq
}
