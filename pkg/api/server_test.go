package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/flowstudio/pkg/conductor"
	"github.com/tcmartin/flowstudio/pkg/config"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/registry"
	"github.com/tcmartin/flowstudio/pkg/storage"
)

const editorDocument = `{
  "workflow": {"name": "orders", "description": "order pipeline"},
  "nodes": [
    {"id": "charge", "taskType": "SIMPLE", "label": "Charge"},
    {"id": "ship", "taskType": "HTTP", "label": "Ship", "config": {"http_request": {"uri": "http://ship", "method": "POST"}}}
  ]
}`

const engineDefinition = `{
  "name": "billing",
  "tasks": [{"name": "bill", "taskReferenceName": "bill", "type": "SIMPLE"}]
}`

// fakeConductor is an engine API that stores workflows in memory
type fakeConductor struct {
	mu        sync.Mutex
	workflows map[string]json.RawMessage
	fail      bool
}

func newFakeConductor(t *testing.T) (*fakeConductor, *conductor.Client) {
	t.Helper()
	engine := &fakeConductor{workflows: make(map[string]json.RawMessage)}

	router := mux.NewRouter()
	router.HandleFunc("/api/metadata/workflow", func(w http.ResponseWriter, r *http.Request) {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		if engine.fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var defs []json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&defs))
		for _, raw := range defs {
			var meta struct {
				Name string `json:"name"`
			}
			require.NoError(t, json.Unmarshal(raw, &meta))
			engine.workflows[meta.Name] = raw
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPut)
	router.HandleFunc("/api/metadata/workflow/{name}", func(w http.ResponseWriter, r *http.Request) {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		if engine.fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		raw, ok := engine.workflows[mux.Vars(r)["name"]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	cfg := conductor.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryCount = 0
	client, err := conductor.NewClient(cfg)
	require.NoError(t, err)
	return engine, client
}

type testEnv struct {
	server   *Server
	registry *registry.DefinitionRegistryService
	engine   *fakeConductor
	cache    storage.CacheStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider := storage.NewMemoryProvider()
	require.NoError(t, provider.Initialize())

	reg := registry.NewDefinitionRegistry(provider.GetDefinitionStore(), registry.Options{})
	engine, client := newFakeConductor(t)

	server, err := NewServer(config.DefaultConfig(), Services{
		Registry:  reg,
		Publisher: registry.NewPublisher(reg, client, nil),
		Fetcher:   registry.NewFetcher(client, provider.GetCacheStore(), time.Hour, nil),
	}, nil)
	require.NoError(t, err)

	return &testEnv{server: server, registry: reg, engine: engine, cache: provider.GetCacheStore()}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/v1/normalize", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNormalizeJSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/normalize", "application/json", editorDocument)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	def := decode[models.WorkflowDefinition](t, rec)
	assert.Equal(t, "orders", def.Name)
	require.Len(t, def.Tasks, 2)
	assert.Equal(t, "charge", def.Tasks[0].TaskReferenceName)
	assert.Equal(t, models.TaskTypeHTTP, def.Tasks[1].Type)
	assert.Equal(t, "http://ship", def.Tasks[1].InputParameters["uri"])
}

func TestNormalizeYAML(t *testing.T) {
	env := newTestEnv(t)
	body := "workflow:\n  name: yamlflow\nnodes:\n  - id: a\n    taskType: SIMPLE\n"
	rec := env.do(t, http.MethodPost, "/api/v1/normalize", "application/yaml", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "yamlflow", decode[models.WorkflowDefinition](t, rec).Name)
}

func TestNormalizeErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/normalize", "application/json", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/normalize", "application/json",
		`{"nodes":[{"id":"x","type":"canvasNode","label":"Mystery"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "Mystery")
}

func TestRender(t *testing.T) {
	env := newTestEnv(t)
	body := `{"tasks":[{"name":"A","taskReferenceName":"a","type":"SIMPLE"}],"direction":"LR"}`
	rec := env.do(t, http.MethodPost, "/api/v1/render", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	diagram := decode[RenderResponse](t, rec).Diagram
	assert.True(t, strings.HasPrefix(diagram, "flowchart LR\n"))
	assert.Contains(t, diagram, `a_0["A"]`)
}

func TestRenderDefaultsAndStatuses(t *testing.T) {
	env := newTestEnv(t)
	body := `{"definition":` + engineDefinition + `,"showStatus":true,"statuses":{"bill":"COMPLETED"}}`
	rec := env.do(t, http.MethodPost, "/api/v1/render", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	diagram := decode[RenderResponse](t, rec).Diagram
	assert.True(t, strings.HasPrefix(diagram, "flowchart TD\n"))
	assert.Contains(t, diagram, "bill_0")
	assert.Contains(t, diagram, "completed")
}

func TestRenderInvalidDirection(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/render", "application/json", `{"tasks":[],"direction":"XY"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/render", "application/json", `{"tasks":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(registry.ErrDefinitionNotFound))
	assert.Equal(t, http.StatusNotFound, statusFor(conductor.ErrWorkflowNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(registry.ErrInvalidMetadata))
	assert.Equal(t, http.StatusBadGateway, statusFor(&conductor.APIError{StatusCode: 500}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
	assert.Equal(t, http.StatusBadGateway, engineStatus(assert.AnError))
}

func TestNilEngineServices(t *testing.T) {
	provider := storage.NewMemoryProvider()
	reg := registry.NewDefinitionRegistry(provider.GetDefinitionStore(), registry.Options{})
	server, err := NewServer(config.DefaultConfig(), Services{Registry: reg}, nil)
	require.NoError(t, err)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/definitions/abc/publish"},
		{http.MethodGet, "/api/v1/engine/workflows/orders"},
	} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, bytes.NewReader(nil)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

func TestNewServerRejectsBadTrustedProxy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.TrustedProxies = []string{"proxy.local"}

	provider := storage.NewMemoryProvider()
	reg := registry.NewDefinitionRegistry(provider.GetDefinitionStore(), registry.Options{})
	_, err := NewServer(cfg, Services{Registry: reg}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trusted proxies")
}

func TestPublishRateLimitJSON(t *testing.T) {
	provider := storage.NewMemoryProvider()
	reg := registry.NewDefinitionRegistry(provider.GetDefinitionStore(), registry.Options{})
	server, err := NewServer(config.DefaultConfig(), Services{Registry: reg}, nil)
	require.NoError(t, err)

	var rec *httptest.ResponseRecorder
	for i := 0; i <= publishLimit; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/definitions/abc/publish", nil)
		req.RemoteAddr = "10.9.9.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec = httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode[map[string]string](t, rec)
	assert.NotEmpty(t, body["error"])
}
