// Package invalidation broadcasts cache invalidation events triggered by
// IndexedCacheFacade and keeps an immutable audit trail of them.
//
// Adapted from the teacher's invalidation service: the pub/sub broadcast
// and audit-log write pattern are unchanged, but the operations are
// narrowed from arbitrary key/pattern invalidation to the two shapes
// IndexedCacheFacade actually performs — invalidateEntry and
// invalidateNamespace — since this layer's cache is always addressed by
// (namespace, indexKey, key), never by free-form glob.
package invalidation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"encore.dev/beta/auth"
	"encore.dev/pubsub"
	"encore.dev/storage/sqldb"

	"encore.app/pkg/middleware"
	"encore.app/pkg/monitoring"
	"encore.app/pkg/observability"
)

// adminLimiter throttles the admin debug surface per caller, independent
// of any product-facing quota.
var adminLimiter = middleware.NewIPRateLimiter(rate.Limit(2), 5)

//encore:service
type Service struct {
	auditLogger AuditLoggerInterface
	metrics     *Metrics
}

// AuditLoggerInterface defines the interface for audit logging operations.
type AuditLoggerInterface interface {
	Insert(ctx context.Context, log AuditLog) error
	GetRecent(ctx context.Context, limit, offset int, patternFilter string) ([]AuditLog, error)
	GetCount(ctx context.Context, patternFilter string) (int, error)
	GetByRequestID(ctx context.Context, requestID string) ([]AuditLog, error)
}

// Metrics tracks invalidation performance counters.
type Metrics struct {
	TotalInvalidations    atomic.Int64
	EntryInvalidations    atomic.Int64
	NamespaceInvalidations atomic.Int64
	AuditWrites           atomic.Int64
	PubSubPublishes       atomic.Int64
	Errors                atomic.Int64
}

var db = sqldb.Named("invalidation_db")

func initService() (*Service, error) {
	auditLogger, err := NewAuditLogger(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	return &Service{
		auditLogger: auditLogger,
		metrics:     &Metrics{},
	}, nil
}

var svc *Service

func init() {
	var err error
	svc, err = initService()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize invalidation service: %v", err))
	}
}

// InvalidationEvent is broadcast to every cache-facade instance so
// invalidations triggered on one node are observed on all of them.
type InvalidationEvent struct {
	Namespace   string    `json:"namespace"`
	IndexKey    string    `json:"index_key"`
	Keys        []string  `json:"keys"`       // empty means the whole namespace
	TriggeredBy string    `json:"triggered_by"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
}

// CacheInvalidateTopic broadcasts InvalidationEvent to subscribed
// cache-facade processes.
var CacheInvalidateTopic = pubsub.NewTopic[*InvalidationEvent](
	"cache-invalidate",
	pubsub.TopicConfig{
		DeliveryGuarantee: pubsub.AtLeastOnce,
	},
)

type InvalidateEntriesRequest struct {
	Namespace   string   `json:"namespace"`
	IndexKey    string   `json:"index_key"`
	Keys        []string `json:"keys"`
	TriggeredBy string   `json:"triggered_by"`
	RequestID   string   `json:"request_id"`
}

type InvalidateEntriesResponse struct {
	Success          bool      `json:"success"`
	InvalidatedCount int       `json:"invalidated_count"`
	RequestID        string    `json:"request_id"`
	PublishedAt      time.Time `json:"published_at"`
}

type InvalidateNamespaceRequest struct {
	Namespace   string `json:"namespace"`
	IndexKey    string `json:"index_key"`
	TriggeredBy string `json:"triggered_by"`
	RequestID   string `json:"request_id"`
}

type InvalidateNamespaceResponse struct {
	Success     bool      `json:"success"`
	Namespace   string    `json:"namespace"`
	IndexKey    string    `json:"index_key"`
	RequestID   string    `json:"request_id"`
	PublishedAt time.Time `json:"published_at"`
}

type GetAuditLogsRequest struct {
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	Pattern string `json:"pattern,omitempty"`
}

type GetAuditLogsResponse struct {
	Logs       []AuditLog `json:"logs"`
	TotalCount int        `json:"total_count"`
	HasMore    bool       `json:"has_more"`
}

type MetricsResponse struct {
	TotalInvalidations     int64   `json:"total_invalidations"`
	EntryInvalidations     int64   `json:"entry_invalidations"`
	NamespaceInvalidations int64   `json:"namespace_invalidations"`
	AuditWrites            int64   `json:"audit_writes"`
	PubSubPublishes        int64   `json:"pubsub_publishes"`
	Errors                 int64   `json:"errors"`
	NamespaceRatio         float64 `json:"namespace_invalidation_ratio"`
}

// InvalidateEntries broadcasts invalidation of specific keys within a
// namespace's index, called by IndexedCacheFacade.invalidateEntry.
//
//encore:api public method=POST path=/invalidate/entries
func InvalidateEntries(ctx context.Context, req *InvalidateEntriesRequest) (*InvalidateEntriesResponse, error) {
	if svc == nil {
		return nil, errors.New("service not initialized")
	}
	return svc.InvalidateEntries(ctx, req)
}

func (s *Service) InvalidateEntries(ctx context.Context, req *InvalidateEntriesRequest) (*InvalidateEntriesResponse, error) {
	start := time.Now()

	if len(req.Keys) == 0 {
		return nil, errors.New("keys cannot be empty")
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "unknown"
	}
	if req.RequestID == "" {
		req.RequestID = generateRequestID()
	}

	keys := deduplicateKeys(req.Keys)

	event := &InvalidationEvent{
		Namespace:   req.Namespace,
		IndexKey:    req.IndexKey,
		Keys:        keys,
		TriggeredBy: req.TriggeredBy,
		Timestamp:   time.Now(),
		RequestID:   req.RequestID,
	}

	if _, err := CacheInvalidateTopic.Publish(ctx, event); err != nil {
		s.metrics.Errors.Add(1)
		return nil, fmt.Errorf("failed to publish invalidation event: %w", err)
	}
	s.metrics.PubSubPublishes.Add(1)

	s.writeAuditAsync(event, start)
	s.metrics.TotalInvalidations.Add(1)
	s.metrics.EntryInvalidations.Add(1)

	return &InvalidateEntriesResponse{
		Success:          true,
		InvalidatedCount: len(keys),
		RequestID:        req.RequestID,
		PublishedAt:      event.Timestamp,
	}, nil
}

// InvalidateNamespace broadcasts a whole-namespace invalidation, called
// by IndexedCacheFacade.invalidateNamespace after it has enumerated and
// deleted the namespace's members locally.
//
//encore:api public method=POST path=/invalidate/namespace
func InvalidateNamespace(ctx context.Context, req *InvalidateNamespaceRequest) (*InvalidateNamespaceResponse, error) {
	if svc == nil {
		return nil, errors.New("service not initialized")
	}
	return svc.InvalidateNamespace(ctx, req)
}

func (s *Service) InvalidateNamespace(ctx context.Context, req *InvalidateNamespaceRequest) (*InvalidateNamespaceResponse, error) {
	start := time.Now()

	if req.IndexKey == "" {
		return nil, errors.New("index_key cannot be empty")
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "unknown"
	}
	if req.RequestID == "" {
		req.RequestID = generateRequestID()
	}

	event := &InvalidationEvent{
		Namespace:   req.Namespace,
		IndexKey:    req.IndexKey,
		TriggeredBy: req.TriggeredBy,
		Timestamp:   time.Now(),
		RequestID:   req.RequestID,
	}

	if _, err := CacheInvalidateTopic.Publish(ctx, event); err != nil {
		s.metrics.Errors.Add(1)
		return nil, fmt.Errorf("failed to publish invalidation event: %w", err)
	}
	s.metrics.PubSubPublishes.Add(1)

	s.writeAuditAsync(event, start)
	s.metrics.TotalInvalidations.Add(1)
	s.metrics.NamespaceInvalidations.Add(1)

	return &InvalidateNamespaceResponse{
		Success:     true,
		Namespace:   req.Namespace,
		IndexKey:    req.IndexKey,
		RequestID:   req.RequestID,
		PublishedAt: event.Timestamp,
	}, nil
}

func (s *Service) writeAuditAsync(event *InvalidationEvent, start time.Time) {
	go func() {
		auditLog := AuditLog{
			Pattern:     event.Namespace + ":" + event.IndexKey,
			Keys:        event.Keys,
			TriggeredBy: event.TriggeredBy,
			Timestamp:   event.Timestamp,
			RequestID:   event.RequestID,
			Latency:     time.Since(start).Milliseconds(),
		}
		if err := s.auditLogger.Insert(context.Background(), auditLog); err != nil {
			s.metrics.Errors.Add(1)
		} else {
			s.metrics.AuditWrites.Add(1)
		}
	}()
}

// GetAuditLogs retrieves invalidation audit history with pagination.
//
//encore:api public method=GET path=/audit/invalidations
func GetAuditLogs(ctx context.Context, req *GetAuditLogsRequest) (*GetAuditLogsResponse, error) {
	if svc == nil {
		return nil, errors.New("service not initialized")
	}
	return svc.GetAuditLogs(ctx, req)
}

func (s *Service) GetAuditLogs(ctx context.Context, req *GetAuditLogsRequest) (*GetAuditLogsResponse, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 1000 {
		req.Limit = 1000
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	logs, err := s.auditLogger.GetRecent(ctx, req.Limit+1, req.Offset, req.Pattern)
	if err != nil {
		s.metrics.Errors.Add(1)
		return nil, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	hasMore := len(logs) > req.Limit
	if hasMore {
		logs = logs[:req.Limit]
	}

	totalCount, err := s.auditLogger.GetCount(ctx, req.Pattern)
	if err != nil {
		totalCount = len(logs)
	}

	return &GetAuditLogsResponse{Logs: logs, TotalCount: totalCount, HasMore: hasMore}, nil
}

// GetMetrics returns invalidation service metrics.
//
//encore:api public method=GET path=/invalidate/metrics
func GetMetrics(ctx context.Context) (*MetricsResponse, error) {
	if svc == nil {
		return nil, errors.New("service not initialized")
	}
	return svc.GetMetrics(ctx)
}

func (s *Service) GetMetrics(ctx context.Context) (*MetricsResponse, error) {
	total := s.metrics.TotalInvalidations.Load()
	namespace := s.metrics.NamespaceInvalidations.Load()

	ratio := 0.0
	if total > 0 {
		ratio = float64(namespace) / float64(total)
	}

	return &MetricsResponse{
		TotalInvalidations:     total,
		EntryInvalidations:     s.metrics.EntryInvalidations.Load(),
		NamespaceInvalidations: namespace,
		AuditWrites:            s.metrics.AuditWrites.Load(),
		PubSubPublishes:        s.metrics.PubSubPublishes.Load(),
		Errors:                 s.metrics.Errors.Load(),
		NamespaceRatio:         ratio,
	}, nil
}

// AnomaliesResponse is the wire shape for GET /admin/monitoring/anomalies.
type AnomaliesResponse struct {
	Anomalies []monitoring.Anomaly `json:"anomalies"`
}

// GetAnomalies is an admin-debug dashboard read over the latency
// anomalies pkg/monitoring has flagged in the last hour, layered on top
// of (not replacing) the Prometheus histograms operators scrape directly.
// Rate limited and logged per caller like any other admin debug surface.
//
//encore:api auth method=GET path=/admin/monitoring/anomalies
func GetAnomalies(ctx context.Context) (*AnomaliesResponse, error) {
	uid, _ := auth.UserID()
	ctx = middleware.WithRequestID(ctx, uuid.New().String())
	if !adminLimiter.Allow(string(uid)) {
		middleware.LogWithRequestID(ctx, observability.Shared().Logger(), "admin anomalies rate limited",
			map[string]any{"caller": string(uid)})
		return nil, errors.New("admin debug surface rate limit exceeded")
	}
	anomalies := monitoring.Shared().Recent(time.Hour)
	middleware.LogWithRequestID(ctx, observability.Shared().Logger(), "admin anomalies",
		map[string]any{"caller": string(uid), "count": len(anomalies)})
	return &AnomaliesResponse{Anomalies: anomalies}, nil
}

func deduplicateKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			result = append(result, key)
		}
	}
	return result
}

func generateRequestID() string {
	return "inv-" + uuid.NewString()
}
