package accumulator

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/hpungsan/buddy/internal/contextitem"
)

// ErrCannotConfirm is returned by a Confirmer that has no way to ask the user
// (for example, stdin is not a terminal). Add reports CAPACITY_EXCEEDED.
var ErrCannotConfirm = stderrors.New("eviction cannot be confirmed in non-interactive mode")

// EvictionPlan describes the oldest items that would be removed to make room
// for an incoming item of size Incoming.
type EvictionPlan struct {
	Incoming    int                `json:"incoming"`
	Total       int                `json:"total"`
	Capacity    int                `json:"capacity"`
	Victims     []contextitem.Item `json:"-"`
	FreedWeight int                `json:"freed_weight"`
}

// Needed reports whether the incoming item requires any eviction.
func (p *EvictionPlan) Needed() bool {
	return len(p.Victims) > 0
}

// Confirmer decides whether a planned eviction may proceed. It is called with
// the accumulator locked and must not call back into it.
type Confirmer interface {
	ConfirmEviction(ctx context.Context, plan EvictionPlan) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, plan EvictionPlan) (bool, error)

// ConfirmEviction calls f.
func (f ConfirmFunc) ConfirmEviction(ctx context.Context, plan EvictionPlan) (bool, error) {
	return f(ctx, plan)
}

// AlwaysEvict accepts every eviction.
var AlwaysEvict Confirmer = ConfirmFunc(func(context.Context, EvictionPlan) (bool, error) {
	return true, nil
})

// NeverEvict declines every eviction.
var NeverEvict Confirmer = ConfirmFunc(func(context.Context, EvictionPlan) (bool, error) {
	return false, nil
})

// NonInteractive reports that it cannot ask.
var NonInteractive Confirmer = ConfirmFunc(func(context.Context, EvictionPlan) (bool, error) {
	return false, ErrCannotConfirm
})

// planLocked selects victims in ascending (AddedAt, Seq) order until the
// incoming item fits. Caller must hold a.mu and guarantee size <= capacity.
func (a *Accumulator) planLocked(size int) EvictionPlan {
	plan := EvictionPlan{
		Incoming: size,
		Total:    a.total,
		Capacity: a.capacity,
	}
	if a.total+size <= a.capacity {
		return plan
	}

	order := make([]int, len(a.items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return a.items[order[i]].OlderThan(&a.items[order[j]])
	})

	for _, idx := range order {
		if a.total-plan.FreedWeight+size <= a.capacity {
			break
		}
		victim := a.items[idx]
		plan.Victims = append(plan.Victims, victim)
		plan.FreedWeight += victim.SizeEstimate
	}
	return plan
}

// evictLocked removes the planned victims, preserving the order of the rest.
func (a *Accumulator) evictLocked(victims []contextitem.Item) {
	gone := make(map[string]bool, len(victims))
	for _, v := range victims {
		gone[v.ID] = true
	}

	kept := a.items[:0]
	for _, it := range a.items {
		if gone[it.ID] {
			a.total -= it.SizeEstimate
			continue
		}
		kept = append(kept, it)
	}
	clear(a.items[len(kept):])
	a.items = kept
}
