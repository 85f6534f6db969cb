package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger_SetsRequestIDHeaderAndLogsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	handler := RequestLogger(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, RequestIDFromCtx(r.Context()))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/admin/debug", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	require.Len(t, logs.All(), 1)
	require.Equal(t, zap.InfoLevel, logs.All()[0].Level)
}

func TestRequestLogger_PreservesIncomingRequestID(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	log := zap.New(core)

	handler := RequestLogger(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/admin/debug", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "fixed-id", rr.Header().Get("X-Request-ID"))
}

func TestRequestLogger_ErrorsOn5xx(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	handler := RequestLogger(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest("GET", "/admin/debug", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Len(t, logs.All(), 1)
	require.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
}

func TestWithRequestID_RoundTrips(t *testing.T) {
	ctx := WithRequestID(httptest.NewRequest("GET", "/", nil).Context(), "req-123")
	require.Equal(t, "req-123", RequestIDFromCtx(ctx))
}

func TestRequestIDFromCtx_EmptyWhenAbsent(t *testing.T) {
	require.Empty(t, RequestIDFromCtx(httptest.NewRequest("GET", "/", nil).Context()))
}

func TestLogWithRequestID_IncludesRequestIDAndFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	ctx := WithRequestID(httptest.NewRequest("GET", "/", nil).Context(), "req-456")

	LogWithRequestID(ctx, log, "admin action", map[string]any{"caller": "op1"})

	require.Len(t, logs.All(), 1)
	entry := logs.All()[0]
	require.Equal(t, "admin action", entry.Message)
	fields := entry.ContextMap()
	require.Equal(t, "req-456", fields["request_id"])
	require.Equal(t, "op1", fields["caller"])
}
