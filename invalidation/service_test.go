package invalidation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// MockAuditLogger is a test double for AuditLoggerInterface.
type MockAuditLogger struct {
	mu   sync.Mutex
	logs []AuditLog
}

func NewMockAuditLogger() *MockAuditLogger {
	return &MockAuditLogger{logs: make([]AuditLog, 0)}
}

func (m *MockAuditLogger) Insert(ctx context.Context, log AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockAuditLogger) GetRecent(ctx context.Context, limit, offset int, patternFilter string) ([]AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]AuditLog, 0)
	for i := len(m.logs) - 1; i >= 0; i-- {
		log := m.logs[i]
		if patternFilter == "" || log.Pattern == patternFilter {
			filtered = append(filtered, log)
		}
	}

	if offset >= len(filtered) {
		return []AuditLog{}, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

func (m *MockAuditLogger) GetCount(ctx context.Context, patternFilter string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if patternFilter == "" {
		return len(m.logs), nil
	}
	count := 0
	for _, log := range m.logs {
		if log.Pattern == patternFilter {
			count++
		}
	}
	return count, nil
}

func (m *MockAuditLogger) GetByRequestID(ctx context.Context, requestID string) ([]AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]AuditLog, 0)
	for _, log := range m.logs {
		if log.RequestID == requestID {
			result = append(result, log)
		}
	}
	return result, nil
}

func setupTestService() *Service {
	return &Service{
		auditLogger: NewMockAuditLogger(),
		metrics:     &Metrics{},
	}
}

// waitForAuditWrite polls briefly since writeAuditAsync runs in its own
// goroutine off the request path.
func waitForAuditWrite(s *Service, want int64) bool {
	for i := 0; i < 100; i++ {
		if s.metrics.AuditWrites.Load() >= want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestService_InvalidateEntries(t *testing.T) {
	svc := setupTestService()
	ctx := context.Background()

	req := &InvalidateEntriesRequest{
		Namespace:   "artifacts",
		IndexKey:    "user-1",
		Keys:        []string{"recipe-1", "recipe-2"},
		TriggeredBy: "cache_facade",
		RequestID:   "test-req-1",
	}

	resp, err := svc.InvalidateEntries(ctx, req)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, 2, resp.InvalidatedCount)
	require.Equal(t, "test-req-1", resp.RequestID)
	require.EqualValues(t, 1, svc.metrics.EntryInvalidations.Load())

	require.True(t, waitForAuditWrite(svc, 1), "audit log was never written")
}

func TestService_InvalidateEntries_Deduplicates(t *testing.T) {
	svc := setupTestService()
	req := &InvalidateEntriesRequest{
		Namespace:   "artifacts",
		IndexKey:    "user-1",
		Keys:        []string{"a", "a", "b"},
		TriggeredBy: "cache_facade",
	}

	resp, err := svc.InvalidateEntries(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, resp.InvalidatedCount, "want deduplicated count")
}

func TestService_InvalidateEntries_EmptyKeysRejected(t *testing.T) {
	svc := setupTestService()
	req := &InvalidateEntriesRequest{Namespace: "artifacts", IndexKey: "user-1", Keys: []string{}}
	_, err := svc.InvalidateEntries(context.Background(), req)
	require.Error(t, err)
}

func TestService_InvalidateNamespace(t *testing.T) {
	svc := setupTestService()
	req := &InvalidateNamespaceRequest{
		Namespace:   "artifacts",
		IndexKey:    "user-1",
		TriggeredBy: "cache_facade",
		RequestID:   "test-req-2",
	}

	resp, err := svc.InvalidateNamespace(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "user-1", resp.IndexKey)
	require.EqualValues(t, 1, svc.metrics.NamespaceInvalidations.Load())
}

func TestService_InvalidateNamespace_EmptyIndexKeyRejected(t *testing.T) {
	svc := setupTestService()
	req := &InvalidateNamespaceRequest{Namespace: "artifacts"}
	_, err := svc.InvalidateNamespace(context.Background(), req)
	require.Error(t, err)
}

func TestService_GetMetrics_ComputesNamespaceRatio(t *testing.T) {
	svc := setupTestService()
	ctx := context.Background()

	svc.InvalidateEntries(ctx, &InvalidateEntriesRequest{Namespace: "ns", IndexKey: "idx", Keys: []string{"k"}})
	svc.InvalidateNamespace(ctx, &InvalidateNamespaceRequest{Namespace: "ns", IndexKey: "idx"})

	resp, err := svc.GetMetrics(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), resp.TotalInvalidations)
	require.Equal(t, int64(1), resp.EntryInvalidations)
	require.Equal(t, int64(1), resp.NamespaceInvalidations)
	require.Equal(t, 0.5, resp.NamespaceRatio)
}

func TestService_GetAuditLogs_Pagination(t *testing.T) {
	svc := setupTestService()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		svc.auditLogger.Insert(ctx, AuditLog{
			Pattern:     fmt.Sprintf("ns:idx-%d", i),
			TriggeredBy: "test",
			Timestamp:   time.Now(),
			RequestID:   fmt.Sprintf("req-%d", i),
		})
	}

	resp, err := svc.GetAuditLogs(ctx, &GetAuditLogsRequest{Limit: 5, Offset: 0})
	require.NoError(t, err)
	require.Len(t, resp.Logs, 5)
	require.True(t, resp.HasMore)
	require.Equal(t, 10, resp.TotalCount)
}

func TestConcurrentInvalidateEntries(t *testing.T) {
	svc := setupTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	const concurrency = 50
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc.InvalidateEntries(ctx, &InvalidateEntriesRequest{
				Namespace: "ns", IndexKey: "idx",
				Keys: []string{fmt.Sprintf("key-%d", i)},
			})
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, concurrency, svc.metrics.TotalInvalidations.Load())
}

func BenchmarkService_InvalidateEntries(b *testing.B) {
	svc := setupTestService()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc.InvalidateEntries(ctx, &InvalidateEntriesRequest{
			Namespace: "ns", IndexKey: "idx",
			Keys: []string{fmt.Sprintf("key-%d", i)},
		})
	}
}
