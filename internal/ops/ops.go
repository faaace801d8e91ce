package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/config"
	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
	"github.com/hpungsan/buddy/internal/metrics"
	"github.com/hpungsan/buddy/internal/models"
	"github.com/hpungsan/buddy/internal/pack"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps carries the collaborators every operation needs. DB and Config are
// required; the rest may be nil where an operation does not use them.
type Deps struct {
	DB      *sql.DB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Packer  *pack.Packager
	Models  *models.Registry
	Clock   func() time.Time
}

func (d *Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}

func (d *Deps) capacity() int {
	if d.Config == nil || d.Config.Capacity <= 0 {
		return config.DefaultCapacity
	}
	return d.Config.Capacity
}

// observe records an operation's outcome. Call it deferred with a pointer to
// the named error result.
func (d *Deps) observe(op string, start time.Time, errp *error) {
	code := "OK"
	if *errp != nil {
		code = string(errors.As(*errp).Code)
		d.logger().Debug("operation failed", zap.String("op", op), zap.Error(*errp))
	}
	d.Metrics.RecordOp(op, code, time.Since(start))
}

// workspaceName returns the normalized key and the raw display form.
func workspaceName(raw string) (norm, display string) {
	norm = contextitem.NormalizeWorkspace(raw)
	display = strings.TrimSpace(raw)
	if display == "" {
		display = norm
	}
	return norm, display
}

// cancelled maps a failure caused by a done context to CANCELLED. Typed
// outcomes such as EVICTION_DECLINED pass through even when the context ended
// while they were decided.
func cancelled(ctx context.Context, op string, err error) error {
	if ctx.Err() == nil {
		return err
	}
	if be := errors.As(err); be.Code != errors.ErrInternal {
		return err
	}
	return errors.NewCancelled(op)
}

// ItemDetail is an item summary plus its full content.
type ItemDetail struct {
	contextitem.ItemSummary
	Content string `json:"content"`
}

func toSummaries(items []contextitem.Item) []contextitem.ItemSummary {
	out := make([]contextitem.ItemSummary, 0, len(items))
	for i := range items {
		out = append(out, items[i].ToSummary())
	}
	return out
}
