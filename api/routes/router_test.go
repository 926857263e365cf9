package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/getsum-node/api/controllers"
	"github.com/angelmondragon/getsum-node/internal/sum"
	"github.com/angelmondragon/getsum-node/pkg/logger"
	"github.com/angelmondragon/getsum-node/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, checks map[string]controllers.Pinger) (http.Handler, *prometheus.Registry) {
	t.Helper()
	node, err := sum.NewNode(sum.NodeConfig{InputKey: "temp_", OutputKey: "tempSum"})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := metrics.NewTransformMetrics(reg)
	m.IncOutcome("produced", "Success")
	return NewRouter(Deps{
		Logger:      logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		Node:        node,
		Gatherer:    reg,
		ReadyChecks: checks,
	}), reg
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/health/live", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"live"}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealthReady(t *testing.T) {
	router, _ := newTestRouter(t, map[string]controllers.Pinger{
		"redis":  stubPinger{},
		"pubsub": stubPinger{},
	})

	rec := serve(router, http.MethodGet, "/health/ready", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "ready", data["status"])
}

func TestHealthReadyDependencyDown(t *testing.T) {
	router, _ := newTestRouter(t, map[string]controllers.Pinger{
		"redis":  stubPinger{err: errors.New("connection refused")},
		"pubsub": stubPinger{},
	})

	rec := serve(router, http.MethodGet, "/health/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	apiErr := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "DEPENDENCY_ERROR", apiErr["code"])
	details := apiErr["details"].(map[string]any)
	assert.Equal(t, "connection refused", details["redis"])
	assert.Equal(t, "ok", details["pubsub"])
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "getsum_messages_total")
}

func TestNodeConfig(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/api/v1/node", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"inputKey":"temp_","outputKey":"tempSum"}}`, rec.Body.String())
}

func TestTransformProduced(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	body := `{"message":{"id":"7f1f3c1e-2a8b-4c55-9d8e-6a3b1c2d4e5f","type":"POST_TELEMETRY_REQUEST",` +
		`"originator":{"entityType":"DEVICE","id":"0b1e2f3a-4b5c-6d7e-8f90-a1b2c3d4e5f6"},` +
		`"metadata":{"deviceName":"thermo-1"},"data":"{\"temp_1\": 10, \"temp_2\": 20, \"humidity\": 5}"}}`

	rec := serve(router, http.MethodPost, "/api/v1/transform", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Success", data["relation"])
	assert.Equal(t, "produced", data["outcome"])
	assert.NotContains(t, data, "error")
	msg := data["message"].(map[string]any)
	assert.NotEqual(t, "7f1f3c1e-2a8b-4c55-9d8e-6a3b1c2d4e5f", msg["id"])
	assert.Equal(t, "POST_TELEMETRY_REQUEST", msg["type"])
	assert.Equal(t, map[string]any{"deviceName": "thermo-1"}, msg["metadata"])
	assert.Equal(t, `{"tempSum":30.0}`, msg["data"])
}

func TestTransformNoMatch(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	body := `{"message":{"type":"POST_TELEMETRY_REQUEST","data":"{\"humidity\": 5}"}}`

	rec := serve(router, http.MethodPost, "/api/v1/transform", body)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Failure", data["relation"])
	assert.Equal(t, "no_match", data["outcome"])
	apiErr := data["error"].(map[string]any)
	assert.Equal(t, "NO_MATCH", apiErr["code"])
	assert.Equal(t, "message doesn't contain the key: temp_", apiErr["message"])
	assert.Equal(t, `{"humidity": 5}`, data["message"].(map[string]any)["data"])
}

func TestTransformDecodeError(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	body := `{"message":{"type":"POST_TELEMETRY_REQUEST","data":"not-json"}}`

	rec := serve(router, http.MethodPost, "/api/v1/transform", body)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Failure", data["relation"])
	assert.Equal(t, "decode_error", data["outcome"])
	apiErr := data["error"].(map[string]any)
	assert.Equal(t, "DECODE_ERROR", apiErr["code"])
	assert.Contains(t, apiErr["details"], "cause")
}

func TestTransformRejectsInvalidBody(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	tests := map[string]string{
		"not json":      `nope`,
		"unknown field": `{"msg":{}}`,
		"missing type":  `{"message":{"data":"{}"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := serve(router, http.MethodPost, "/api/v1/transform", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			apiErr := decodeBody(t, rec)["error"].(map[string]any)
			assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
		})
	}
}

func TestTransformMissingTypeDetails(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodPost, "/api/v1/transform", `{"message":{"data":"{}"}}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "is required"}, apiErr["details"])
}
