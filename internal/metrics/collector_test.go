package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector("buddy", zap.NewNop())

	assert.NotNil(t, c.opsTotal)
	assert.NotNil(t, c.evictionsTotal)
	assert.NotNil(t, c.packerRuns)
	assert.NotNil(t, c.Registry())
}

func TestCollector_RecordOp(t *testing.T) {
	c := NewCollector("buddy", zap.NewNop())

	c.RecordOp("add", "OK", 10*time.Millisecond)
	c.RecordOp("add", "OK", 5*time.Millisecond)
	c.RecordOp("add", "EVICTION_DECLINED", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.opsTotal.WithLabelValues("add", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.opsTotal.WithLabelValues("add", "EVICTION_DECLINED")))
}

func TestCollector_RecordEviction(t *testing.T) {
	c := NewCollector("buddy", zap.NewNop())

	c.RecordEviction(2, 120)
	c.RecordEviction(0, 0)
	c.RecordEviction(1, 30)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.evictionsTotal))
	assert.Equal(t, 150.0, testutil.ToFloat64(c.evictedTokens))
}

func TestCollector_SetWorkspace(t *testing.T) {
	c := NewCollector("buddy", zap.NewNop())

	c.SetWorkspace("default", 3, 900)
	c.SetWorkspace("default", 2, 600)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.workspaceItems.WithLabelValues("default")))
	assert.Equal(t, 600.0, testutil.ToFloat64(c.workspaceTokens.WithLabelValues("default")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordOp("add", "OK", time.Second)
		c.RecordEviction(1, 1)
		c.SetWorkspace("w", 1, 1)
		c.RecordPackerRun("ok", time.Second)
		c.RecordHTTPRequest("GET", "/", 200, time.Second)
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("buddy", zap.NewNop())
	c.RecordPackerRun("ok", 2*time.Second)
	c.RecordHTTPRequest("GET", "/context", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `buddy_packer_runs_total{result="ok"} 1`)
	assert.Contains(t, string(body), `buddy_http_requests_total{method="GET",path="/context",status="200"} 1`)
}
