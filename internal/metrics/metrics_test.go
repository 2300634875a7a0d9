package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hera-erp/hera/internal/engine"
	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/smartcode"
)

var (
	_ engine.Recorder    = (*Metrics)(nil)
	_ smartcode.Recorder = (*Metrics)(nil)
)

func TestObserveOperation(t *testing.T) {
	m := New("hera")

	m.ObserveOperation("entity", "create", "success", "", 5*time.Millisecond)
	m.ObserveOperation("entity", "create", "success", "", 7*time.Millisecond)
	m.ObserveOperation("entity", "create", "error", model.KindValidation, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("entity", "create", "success", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("entity", "create", "error", "validation")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.operationDuration))
}

func TestGovernorCounters(t *testing.T) {
	m := New("hera")

	m.RecordValidation("syntax", true)
	m.RecordValidation("semantic", false)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	expected := `
# HELP hera_smartcode_cache_lookups_total Total number of smart code cache lookups by result
# TYPE hera_smartcode_cache_lookups_total counter
hera_smartcode_cache_lookups_total{result="hit"} 1
hera_smartcode_cache_lookups_total{result="miss"} 2
`
	require.NoError(t, testutil.CollectAndCompare(m.cacheLookups, strings.NewReader(expected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("semantic", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("syntax", "pass")))
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New("hera"), New("hera")
	a.RecordCacheLookup(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.cacheLookups))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New("hera")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "200")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hera_http_requests_total{method="GET",path="/health",status="200"} 3`)
	assert.Contains(t, rec.Body.String(), `status="404"`)
}
