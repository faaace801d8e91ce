// Package accumulator holds a bounded, ordered collection of context items and
// evicts the oldest items, with the caller's consent, when a new item would
// exceed the capacity.
package accumulator

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
)

// DefaultCapacity is the weight budget used when none is configured.
const DefaultCapacity = 100000

// Options configures an Accumulator.
type Options struct {
	// Capacity is the upper bound on total weight. 0 means DefaultCapacity.
	Capacity int

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger receives eviction and restore events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// AddInput is the inbound tuple for Add. The strings are trusted as opaque.
type AddInput struct {
	Kind        contextitem.Kind
	DisplayName string
	SourcePath  string
	Content     string
}

// AddResult reports the inserted item and everything evicted to make room.
type AddResult struct {
	Item          contextitem.Item
	Evicted       []contextitem.Item
	EvictedWeight int
}

// Stats is a consistent view of the collection's weight.
type Stats struct {
	Items        int `json:"items"`
	Total        int `json:"total"`
	Capacity     int `json:"capacity"`
	UsagePercent int `json:"usage_percent"`
}

// Accumulator is safe for concurrent use. Mutations hold the write lock for
// their whole duration, including eviction confirmation.
type Accumulator struct {
	mu       sync.RWMutex
	items    []contextitem.Item
	total    int
	capacity int
	nextSeq  uint64

	clock   func() time.Time
	entropy io.Reader
	logger  *zap.Logger
}

// New creates an empty accumulator.
func New(opts Options) (*Accumulator, error) {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("capacity must be positive, got %d", capacity))
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Accumulator{
		capacity: capacity,
		nextSeq:  1,
		clock:    clock,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		logger:   logger.With(zap.String("component", "accumulator")),
	}, nil
}

// Add inserts a new item, evicting the oldest items first if the caller's
// confirmer agrees. A nil confirmer means the caller cannot be asked.
func (a *Accumulator) Add(ctx context.Context, in AddInput, confirm Confirmer) (*AddResult, error) {
	if !in.Kind.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("kind must be one of: file, selection, directory (got %q)", in.Kind))
	}
	name := contextitem.DefaultDisplayName(in.DisplayName, in.SourcePath)
	if name == "" {
		return nil, errors.NewInvalidRequest("display name or source path is required")
	}
	size := contextitem.EstimateSize(in.Content)

	a.mu.Lock()
	defer a.mu.Unlock()

	if size > a.capacity {
		return nil, errors.NewItemTooLarge(size, a.capacity)
	}

	result := &AddResult{}
	plan := a.planLocked(size)
	if plan.Needed() {
		if confirm == nil {
			return nil, errors.NewCapacityExceeded(a.total, size, a.capacity)
		}
		ok, err := confirm.ConfirmEviction(ctx, plan)
		if err != nil {
			if stderrors.Is(err, ErrCannotConfirm) {
				return nil, errors.NewCapacityExceeded(a.total, size, a.capacity)
			}
			// No answer counts as a refusal.
			a.logger.Debug("eviction confirmation failed", zap.Error(err))
			ok = false
		}
		if !ok {
			return nil, errors.NewEvictionDeclined(size, len(plan.Victims))
		}

		a.evictLocked(plan.Victims)
		result.Evicted = plan.Victims
		result.EvictedWeight = plan.FreedWeight
		a.logger.Info("evicted oldest items",
			zap.Int("count", len(plan.Victims)),
			zap.Int("freed", plan.FreedWeight),
			zap.Int("incoming", size))
	}

	now := a.clock().UTC().Truncate(time.Millisecond)
	id, err := a.newIDLocked(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	item := contextitem.Item{
		ID:           id,
		Kind:         in.Kind,
		DisplayName:  name,
		SourcePath:   in.SourcePath,
		Content:      in.Content,
		AddedAt:      now,
		Seq:          a.nextSeq,
		SizeEstimate: size,
	}
	a.nextSeq++
	a.items = append(a.items, item)
	a.total += size
	a.checkLocked()

	result.Item = item
	return result, nil
}

// PlanEviction reports which items an insertion of the given size would
// evict, without changing anything.
func (a *Accumulator) PlanEviction(size int) (*EvictionPlan, error) {
	if size < 0 {
		return nil, errors.NewInvalidRequest("size must not be negative")
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if size > a.capacity {
		return nil, errors.NewItemTooLarge(size, a.capacity)
	}
	plan := a.planLocked(size)
	return &plan, nil
}

// Remove deletes the item with the given id. The order of the remaining
// items is preserved.
func (a *Accumulator) Remove(id string) (*contextitem.Item, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexLocked(id)
	if idx < 0 {
		return nil, errors.NewNotFound(id)
	}

	removed := a.items[idx]
	a.items = slices.Delete(a.items, idx, idx+1)
	a.total -= removed.SizeEstimate
	a.checkLocked()
	return &removed, nil
}

// Clear empties the collection and returns how many items were removed.
func (a *Accumulator) Clear() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.items)
	a.items = nil
	a.total = 0
	return n
}

// Restore replaces the collection with previously stored items, in order.
// Sizes are recomputed from content. Nothing changes on error.
func (a *Accumulator) Restore(items []contextitem.Item) error {
	restored := make([]contextitem.Item, len(items))
	seen := make(map[string]bool, len(items))
	total := 0

	for i, it := range items {
		if it.ID == "" {
			return errors.NewInvalidRequest(fmt.Sprintf("item %d has no id", i))
		}
		if seen[it.ID] {
			return errors.NewInvalidRequest(fmt.Sprintf("duplicate item id: %s", it.ID))
		}
		if !it.Kind.Valid() {
			return errors.NewInvalidRequest(fmt.Sprintf("item %s has invalid kind %q", it.ID, it.Kind))
		}
		seen[it.ID] = true

		it.DisplayName = contextitem.DefaultDisplayName(it.DisplayName, it.SourcePath)
		it.SizeEstimate = contextitem.EstimateSize(it.Content)
		it.Seq = uint64(i + 1)
		total += it.SizeEstimate
		restored[i] = it
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if total > a.capacity {
		return errors.NewCapacityExceeded(0, total, a.capacity)
	}

	a.items = restored
	a.total = total
	a.nextSeq = uint64(len(restored) + 1)
	a.checkLocked()
	a.logger.Debug("restored items", zap.Int("count", len(restored)), zap.Int("total", total))
	return nil
}

// TotalWeight returns the sum of all size estimates.
func (a *Accumulator) TotalWeight() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

// Capacity returns the configured weight budget.
func (a *Accumulator) Capacity() int {
	return a.capacity
}

// Len returns the number of items.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Stats returns count, total and capacity from a single read.
func (a *Accumulator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Stats{
		Items:        len(a.items),
		Total:        a.total,
		Capacity:     a.capacity,
		UsagePercent: contextitem.UsagePercent(a.total, a.capacity),
	}
}

// Items returns a copy of the collection in insertion order.
func (a *Accumulator) Items() []contextitem.Item {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.items)
}

// Get returns the item with the given id.
func (a *Accumulator) Get(id string) (*contextitem.Item, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	idx := a.indexLocked(id)
	if idx < 0 {
		return nil, errors.NewNotFound(id)
	}
	it := a.items[idx]
	return &it, nil
}

// RenderSummary returns the Markdown summary report. It is reproducible for
// identical state and does not mutate anything.
func (a *Accumulator) RenderSummary() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return contextitem.RenderSummary(a.items, a.total, a.capacity)
}

// Export serializes every item with its full content, headed by the current
// clock time.
func (a *Accumulator) Export() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return contextitem.RenderExport(a.items, a.total, a.clock())
}

func (a *Accumulator) indexLocked(id string) int {
	return slices.IndexFunc(a.items, func(it contextitem.Item) bool {
		return it.ID == id
	})
}

func (a *Accumulator) newIDLocked(now time.Time) (string, error) {
	for range 3 {
		id, err := ulid.New(ulid.Timestamp(now), a.entropy)
		if err != nil {
			return "", err
		}
		if a.indexLocked(id.String()) < 0 {
			return id.String(), nil
		}
	}
	return "", fmt.Errorf("could not generate a unique item id")
}

// checkLocked asserts the weight invariants. A violation is a programming
// defect, not a recoverable error.
func (a *Accumulator) checkLocked() {
	if a.total < 0 {
		panic(fmt.Sprintf("accumulator: negative total weight %d", a.total))
	}
	if a.total > a.capacity {
		panic(fmt.Sprintf("accumulator: total weight %d exceeds capacity %d", a.total, a.capacity))
	}
}
