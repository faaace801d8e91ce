// Package metrics exposes Prometheus collectors for context operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector records operation, eviction, packer and HTTP metrics on its own
// registry. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	opsTotal        *prometheus.CounterVec
	opDuration      *prometheus.HistogramVec
	evictionsTotal  prometheus.Counter
	evictedTokens   prometheus.Counter
	workspaceTokens *prometheus.GaugeVec
	workspaceItems  *prometheus.GaugeVec

	packerRuns     *prometheus.CounterVec
	packerDuration prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector registered on a fresh registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.opsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of context operations by result code",
		},
		[]string{"op", "code"},
	)

	c.opDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Context operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	c.evictionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evictions_total",
		Help:      "Total number of context items evicted to make room",
	})

	c.evictedTokens = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evicted_tokens_total",
		Help:      "Total estimated tokens freed by eviction",
	})

	c.workspaceTokens = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspace_tokens",
			Help:      "Estimated tokens held by a workspace",
		},
		[]string{"workspace"},
	)

	c.workspaceItems = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspace_items",
			Help:      "Number of context items in a workspace",
		},
		[]string{"workspace"},
	)

	c.packerRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packer_runs_total",
			Help:      "Total number of packer runs by result",
		},
		[]string{"result"},
	)

	c.packerDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "packer_duration_seconds",
		Help:      "Packer run duration in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of dashboard HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// RecordOp counts an operation and its outcome code ("OK" on success).
func (c *Collector) RecordOp(op, code string, duration time.Duration) {
	if c == nil {
		return
	}
	c.opsTotal.WithLabelValues(op, code).Inc()
	c.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordEviction counts evicted items and the weight they freed.
func (c *Collector) RecordEviction(items, tokens int) {
	if c == nil || items == 0 {
		return
	}
	c.evictionsTotal.Add(float64(items))
	c.evictedTokens.Add(float64(tokens))
}

// SetWorkspace records a workspace's current size.
func (c *Collector) SetWorkspace(workspace string, items, tokens int) {
	if c == nil {
		return
	}
	c.workspaceItems.WithLabelValues(workspace).Set(float64(items))
	c.workspaceTokens.WithLabelValues(workspace).Set(float64(tokens))
}

// RecordPackerRun counts a packer run.
func (c *Collector) RecordPackerRun(result string, duration time.Duration) {
	if c == nil {
		return
	}
	c.packerRuns.WithLabelValues(result).Inc()
	c.packerDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest counts a dashboard request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
