package ops

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/db"
	"github.com/hpungsan/buddy/internal/errors"
)

// loadAccumulator builds an accumulator over a workspace's stored items.
// A workspace heavier than the configured capacity fails CAPACITY_EXCEEDED.
func (d *Deps) loadAccumulator(ctx context.Context, q db.Querier, workspace string) (*accumulator.Accumulator, error) {
	items, err := db.LoadWorkspace(ctx, q, workspace)
	if err != nil {
		return nil, err
	}

	acc, err := accumulator.New(accumulator.Options{
		Capacity: d.capacity(),
		Clock:    d.Clock,
		Logger:   d.logger().With(zap.String("workspace", workspace)),
	})
	if err != nil {
		return nil, err
	}
	if err := acc.Restore(items); err != nil {
		if errors.Is(err, errors.ErrCapacityExceeded) {
			d.logger().Warn("stored workspace exceeds configured capacity; clear it or raise capacity",
				zap.String("workspace", workspace), zap.Int("capacity", d.capacity()))
		}
		return nil, err
	}
	return acc, nil
}

// mutate runs fn against a workspace inside one write transaction and saves
// the collection if fn reports a change. Nothing is written when fn fails.
func (d *Deps) mutate(ctx context.Context, op, workspaceRaw string, fn func(acc *accumulator.Accumulator) (bool, error)) (accumulator.Stats, error) {
	norm, display := workspaceName(workspaceRaw)

	var stats accumulator.Stats
	err := db.WithTx(ctx, d.DB, func(tx *sql.Tx) error {
		acc, err := d.loadAccumulator(ctx, tx, norm)
		if err != nil {
			return err
		}
		changed, err := fn(acc)
		if err != nil {
			return err
		}
		if changed {
			if err := db.SaveWorkspace(ctx, tx, norm, display, acc.Items()); err != nil {
				return err
			}
		}
		stats = acc.Stats()
		return nil
	})
	if err != nil {
		return stats, cancelled(ctx, op, err)
	}

	d.Metrics.SetWorkspace(norm, stats.Items, stats.Total)
	return stats, nil
}

// view loads a workspace for reading.
func (d *Deps) view(ctx context.Context, op, workspaceRaw string) (*accumulator.Accumulator, error) {
	norm, _ := workspaceName(workspaceRaw)
	acc, err := d.loadAccumulator(ctx, d.DB, norm)
	if err != nil {
		return nil, cancelled(ctx, op, err)
	}
	return acc, nil
}
