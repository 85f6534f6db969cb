// Package observability implements ObservabilityHooks: the counters,
// timers and structured log fields every component in the orchestration
// and caching layer emits.
//
// Grounded in the teacher's monitoring/metrics.go atomic-counter
// MetricsCollector, generalized from an in-process-only collector to one
// that also exports via github.com/prometheus/client_golang so counters
// survive process restarts in an external TSDB, and logs structured
// fields via go.uber.org/zap instead of the teacher's stdlib log+JSON
// blob approach.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"encore.app/pkg/monitoring"
)

// Hooks bundles the Prometheus collectors and logger every component
// shares. It is constructed once at the composition root and passed by
// reference into each service.
type Hooks struct {
	log *zap.Logger

	cacheAccess     *prometheus.CounterVec
	quotaConsumed   *prometheus.CounterVec
	quotaExceeded   *prometheus.CounterVec
	operationDone   *prometheus.CounterVec
	operationTiming *prometheus.HistogramVec
	modelTiming     *prometheus.HistogramVec
	cacheOpTiming   *prometheus.HistogramVec
}

// New registers this layer's metric families against registry and
// returns the Hooks bundle. Call once per process; registering twice
// against the same registry panics, matching Prometheus client
// semantics.
func New(log *zap.Logger, registry prometheus.Registerer) *Hooks {
	h := &Hooks{
		log: log,
		cacheAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_access_total",
			Help: "Cache facade accesses by namespace and hit outcome.",
		}, []string{"namespace", "hit"}),
		quotaConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_consumed_total",
			Help: "Quota consume attempts by kind and exceeded outcome.",
		}, []string{"kind", "exceeded"}),
		quotaExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_exceeded_total",
			Help: "Quota rejections by kind.",
		}, []string{"kind"}),
		operationDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "operation_completed_total",
			Help: "Orchestrated operations completed by kind, source and outcome.",
		}, []string{"kind", "source", "outcome"}),
		operationTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Orchestrated operation latency by kind and source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "source"}),
		modelTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "model_call_duration_seconds",
			Help:    "Model/external-catalog call latency by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		cacheOpTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Cache tier operation latency by namespace and op.",
			Buckets: prometheus.DefBuckets,
		}, []string{"namespace", "op"}),
	}

	registry.MustRegister(
		h.cacheAccess, h.quotaConsumed, h.quotaExceeded,
		h.operationDone, h.operationTiming, h.modelTiming, h.cacheOpTiming,
	)
	return h
}

// NewNop returns a Hooks bundle that discards everything, for tests and
// packages that don't want to thread a registry through.
func NewNop() *Hooks {
	return New(zap.NewNop(), prometheus.NewRegistry())
}

// shared is the single Hooks instance every self-initializing service
// package registers its counters against, so one /metrics scrape covers
// the whole process instead of one registry per package.
var shared = New(zap.Must(zap.NewProduction()), prometheus.DefaultRegisterer)

// Shared returns the process-wide Hooks bundle.
func Shared() *Hooks {
	return shared
}

// CacheAccess records cache.access{namespace, hit}. hit is "true",
// "false" or "degraded".
func (h *Hooks) CacheAccess(namespace, hit string) {
	h.cacheAccess.WithLabelValues(namespace, hit).Inc()
}

// CacheOpDuration records cache.op.duration{namespace, op}.
func (h *Hooks) CacheOpDuration(namespace, op string, seconds float64) {
	h.cacheOpTiming.WithLabelValues(namespace, op).Observe(seconds)
}

// QuotaConsumed records quota.consumed{kind, exceeded}.
func (h *Hooks) QuotaConsumed(kind string, exceeded bool) {
	h.quotaConsumed.WithLabelValues(kind, boolLabel(exceeded)).Inc()
	if exceeded {
		h.quotaExceeded.WithLabelValues(kind).Inc()
	}
}

// OperationCompleted records operation.completed{kind, source, outcome}.
func (h *Hooks) OperationCompleted(kind, source, outcome string) {
	h.operationDone.WithLabelValues(kind, source, outcome).Inc()
}

// OperationDuration records operation.duration{kind, source} and feeds
// the anomaly detector so a latency spike surfaces on the dashboard layer
// in addition to the raw histogram.
func (h *Hooks) OperationDuration(kind, source string, seconds float64) {
	h.operationTiming.WithLabelValues(kind, source).Observe(seconds)
	monitoring.Shared().Observe(kind, seconds)
}

// ModelCallDuration records model.call.duration{kind}.
func (h *Hooks) ModelCallDuration(kind string, seconds float64) {
	h.modelTiming.WithLabelValues(kind).Observe(seconds)
}

// Logger exposes the structured logger so callers can attach the
// standard field set (user_id, fingerprint, quota_kind, source,
// degraded) at the log site rather than through this package.
func (h *Hooks) Logger() *zap.Logger {
	return h.log
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
