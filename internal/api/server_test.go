package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hera-erp/hera/internal/app"
	"github.com/hera-erp/hera/internal/config"
	"github.com/hera-erp/hera/internal/engine"
	"github.com/hera-erp/hera/internal/metrics"
	"github.com/hera-erp/hera/internal/model"
)

const orgA = "org-a"

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "hera.db")
	a, err := app.Open(cfg,
		app.WithIDGenerator(engine.NewSequenceGenerator("id")),
		app.WithClock(engine.ClockFunc(func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) })),
	)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return New(a.Engine, opts...)
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status string            `json:"status"`
	Data   map[string]any    `json:"data"`
	Rows   []any             `json:"rows"`
	Meta   *engine.Meta      `json:"meta"`
	Error  *engine.ErrorBody `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func seedOrg(t *testing.T, s *Server) {
	t.Helper()
	rec := post(t, s, "/api/v1/universal", engine.Request{
		Operation:      engine.OpCreate,
		Store:          engine.StoreOrganization,
		OrganizationID: model.SystemOrganizationID,
		Payload:        map[string]any{"id": orgA, "organization_name": "Org A", "organization_code": "A"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestUniversal_CreateAndRead(t *testing.T) {
	s := newTestServer(t)
	seedOrg(t, s)

	rec := post(t, s, "/api/v1/universal", map[string]any{
		"operation":       "create",
		"store":           "entity",
		"organization_id": orgA,
		"smart_code":      "HERA.CRM.CUST.ENT.PROF.v1",
		"payload":         map[string]any{"entity_type": "customer", "entity_name": "Ada", "entity_code": "C-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "success", env.Status)
	id, _ := env.Data["id"].(string)
	require.NotEmpty(t, id)

	rec = post(t, s, "/api/v1/universal", map[string]any{
		"operation": "read", "store": "entity", "organization_id": orgA, "id": id,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decodeEnvelope(t, rec).Data["entity_name"])
}

func TestUniversal_DecimalsSurvive(t *testing.T) {
	s := newTestServer(t)
	seedOrg(t, s)

	rec := post(t, s, "/api/v1/universal", map[string]any{
		"operation": "create", "store": "entity", "organization_id": orgA,
		"smart_code": "HERA.CRM.CUST.ENT.PROF.v1",
		"payload":    map[string]any{"id": "cust-1", "entity_type": "customer", "entity_name": "Ada"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := []byte(`{"operation":"create","store":"dynamic_data","organization_id":"org-a",
		"smart_code":"HERA.CRM.CUST.DYN.EMAIL.v1",
		"payload":{"entity_id":"cust-1","field_name":"credit_limit","field_type":"number","value":12345678901234567890.25}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/universal", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"value":12345678901234567890.25`)

	var env struct {
		Data struct {
			Value json.Number `json:"value"`
		} `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&env))
	assert.Equal(t, json.Number("12345678901234567890.25"), env.Data.Value)
}

func TestUniversal_GovernedWriteDoesNotStallServer(t *testing.T) {
	s := newTestServer(t)
	seedOrg(t, s)

	for _, level := range []int{2, 3, 4} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		raw, err := json.Marshal(map[string]any{
			"operation": "create", "store": "entity", "organization_id": orgA,
			"smart_code": "HERA.CRM.CUST.ENT.PROF.v1",
			"payload":    map[string]any{"entity_type": "customer", "entity_name": fmt.Sprintf("L%d", level)},
			"options":    map[string]any{"validation_level": level},
		})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/universal", bytes.NewReader(raw)).WithContext(ctx)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		cancel()
		require.Equalf(t, http.StatusOK, rec.Code, "level %d: %s", level, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUniversal_StatusMapping(t *testing.T) {
	s := newTestServer(t)
	seedOrg(t, s)

	tests := []struct {
		name string
		req  map[string]any
		code int
		kind model.ErrorKind
	}{
		{
			name: "bad smart code",
			req: map[string]any{"operation": "create", "store": "entity", "organization_id": orgA,
				"smart_code": "hera.crm", "payload": map[string]any{"entity_type": "customer", "entity_name": "x"}},
			code: http.StatusBadRequest,
			kind: model.KindValidation,
		},
		{
			name: "missing record",
			req:  map[string]any{"operation": "read", "store": "entity", "organization_id": orgA, "id": "nope"},
			code: http.StatusNotFound,
			kind: model.KindNotFound,
		},
		{
			name: "foreign tenant in payload",
			req: map[string]any{"operation": "create", "store": "entity", "organization_id": orgA,
				"smart_code": "HERA.CRM.CUST.ENT.PROF.v1",
				"payload":    map[string]any{"organization_id": "org-b", "entity_type": "customer", "entity_name": "x"}},
			code: http.StatusForbidden,
			kind: model.KindTenantIsolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, "/api/v1/universal", tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			assert.Equal(t, "error", env.Status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.kind, env.Error.Kind)
		})
	}
}

func TestStatusFor(t *testing.T) {
	kinds := map[model.ErrorKind]int{
		model.KindValidation:      http.StatusBadRequest,
		model.KindNotFound:        http.StatusNotFound,
		model.KindConflict:        http.StatusConflict,
		model.KindIntegrity:       http.StatusUnprocessableEntity,
		model.KindDependency:      http.StatusFailedDependency,
		model.KindTenantIsolation: http.StatusForbidden,
		model.KindInternal:        http.StatusInternalServerError,
	}
	for kind, code := range kinds {
		res := &engine.Result{Status: engine.StatusError, Error: &engine.ErrorBody{Kind: kind}}
		assert.Equal(t, code, StatusFor(res), kind)
	}
	assert.Equal(t, http.StatusOK, StatusFor(&engine.Result{Status: engine.StatusSuccess}))
}

func TestUniversal_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/universal", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Error.Message, "malformed request body")
}

func TestValidateSmartCode(t *testing.T) {
	s := newTestServer(t)

	rec := post(t, s, "/api/v1/smart-codes/validate", map[string]any{
		"code": "HERA.CRM.CUST.ENT.PROF.v1", "organization_id": orgA,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, true, report["valid"])
	assert.Equal(t, "HERA.CRM.CUST.ENT.PROF.v1", report["code"])
	assert.Equal(t, float64(2), report["level"])

	rec = post(t, s, "/api/v1/smart-codes/validate", map[string]any{
		"code": "HERA.NOPE.CUST.ENT.PROF.v1", "organization_id": orgA,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, false, report["valid"])

	rec = post(t, s, "/api/v1/smart-codes/validate", map[string]any{
		"smart_code": "HERA.CRM.CUST.ENT.PROF.v1", "organization_id": orgA, "level": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, s, "/api/v1/smart-codes/validate", map[string]any{
		"code": "HERA.CRM.CUST.ENT.PROF.v1", "organization_id": orgA, "level": 9,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, s, "/api/v1/smart-codes/validate", map[string]any{"code": "HERA.CRM.CUST.ENT.PROF.v1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, s, "/api/v1/smart-codes/validate", map[string]any{"organization_id": orgA})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRouteAndAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := newTestServer(t, WithMetrics(metrics.New("hera")), WithLogger(zap.New(core)))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hera_http_requests_total")

	assert.GreaterOrEqual(t, logs.FilterMessage("HTTP Request").Len(), 1)
}
