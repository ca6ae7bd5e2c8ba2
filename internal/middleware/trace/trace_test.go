package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	applog "dompet/internal/log"
)

func newTraced(buf *bytes.Buffer, status int) (http.Handler, *Middleware) {
	logger := applog.New(applog.Config{Level: slog.LevelInfo, JSON: true, Output: buf})
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, logger)
	h := applog.Middleware(logger)(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).InfoContext(r.Context(), "inside", "seen_id", GetRequestID(r.Context()))
		w.WriteHeader(status)
	})))
	return h, m
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	h, m := newTraced(&buf, http.StatusCreated)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/targets", nil))

	id := rr.Header().Get(HeaderRequestID)
	require.True(t, strings.HasPrefix(id, "req_"))
	require.Contains(t, buf.String(), `"request_id":"`+id+`"`)
	require.Contains(t, buf.String(), `"status_code":201`)
	require.Equal(t, int64(1), m.GetMetrics().TotalRequests)
}

func TestMiddlewareKeepsCallerRequestID(t *testing.T) {
	var buf bytes.Buffer
	h, _ := newTraced(&buf, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, "abc-123", rr.Header().Get(HeaderRequestID))

	req.Header.Set(HeaderRequestID, "bad id with spaces")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.NotEqual(t, "bad id with spaces", rr.Header().Get(HeaderRequestID))
}

func TestMiddlewareCountsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	h, m := newTraced(&buf, http.StatusBadGateway)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, int64(1), m.GetMetrics().ServerErrors)
	require.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestMiddlewareExportsPrometheusMetrics(t *testing.T) {
	var buf bytes.Buffer
	h, m := newTraced(&buf, http.StatusTeapot)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.Collectors()[0]))
	require.NoError(t, reg.Register(m.Collectors()[1]))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/targets", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodPost, "418")))
	n, err := testutil.GatherAndCount(reg, "dompet_http_request_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
