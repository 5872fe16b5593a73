package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/fertigation-mix/internal/adapter/http"
	"github.com/couchcryptid/fertigation-mix/internal/adapter/catalog"
	"github.com/couchcryptid/fertigation-mix/internal/calc"
	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/couchcryptid/fertigation-mix/internal/observability"
	"github.com/couchcryptid/fertigation-mix/internal/snapshot"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type testEnv struct {
	srv     *httpadapter.Server
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, readyErr error, burst int) testEnv {
	return newLimitedTestEnv(t, readyErr, 1000, burst)
}

func newLimitedTestEnv(t *testing.T, readyErr error, limit rate.Limit, burst int) testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	svc := calc.NewService(catalog.NewMemoryFromSeed(seed), logger, metrics)
	signer := snapshot.NewSigner([]byte("test-secret"), time.Hour, clockwork.NewRealClock())

	srv := httpadapter.NewServer(
		httpadapter.Options{Addr: ":0", RateLimit: limit, RateBurst: burst},
		httpadapter.NewAPI(svc, signer, logger),
		&mockReadiness{err: readyErr},
		logger,
		metrics,
	)
	return testEnv{srv: srv, metrics: metrics}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func tanksBody() map[string]any {
	return map[string]any{
		"dosing": []map[string]string{
			{"fertilizer_id": "1", "tank": "A", "weight": "900"},
			{"fertilizer_id": "3", "tank": "B", "weight": "300"},
			{"fertilizer_id": "7", "tank": "原水"},
		},
		"volumes": map[string]float64{"a": 100, "b": 100},
	}
}

func mixBody(token string, ph float64) map[string]any {
	return map[string]any{
		"snapshot_token": token,
		"ph_target":      ph,
		"volumes":        map[string]float64{"volume_a": 1, "volume_b": 1, "volume_water": 198},
	}
}

func issueToken(t *testing.T, env testEnv) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/tanks", tanksBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, ok := decodeBody(t, rec)["snapshot_token"].(string)
	require.True(t, ok)
	return token
}

func TestHealthzReturns200(t *testing.T) {
	env := newTestEnv(t, nil, 10)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, newTestEnv(t, nil, 10).do(t, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		newTestEnv(t, fmt.Errorf("catalog unavailable"), 10).do(t, http.MethodGet, "/readyz", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newTestEnv(t, nil, 10).do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestFertilizers(t *testing.T) {
	rec := newTestEnv(t, nil, 10).do(t, http.MethodGet, "/api/v1/fertilizers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	list, ok := decodeBody(t, rec)["fertilizers"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 7)
	assert.Equal(t, "Calcium Nitrate", list[0].(map[string]any)["brand"])
}

func TestTanksThenMix(t *testing.T) {
	env := newTestEnv(t, nil, 10)
	token := issueToken(t, env)

	rec := env.do(t, http.MethodPost, "/api/v1/mix", mixBody(token, 5.8))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		SnapshotID string             `json:"snapshot_id"`
		Report     domain.FinalReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SnapshotID)
	assert.InDelta(t, 5.8, resp.Report.PHApplied, 1e-9)
	assert.Len(t, resp.Report.Rows, 4)
	assert.Greater(t, resp.Report.ECTotal, 0.0)
}

func TestMix_PHTargetDefaultsToSeven(t *testing.T) {
	env := newTestEnv(t, nil, 10)
	token := issueToken(t, env)

	rec := env.do(t, http.MethodPost, "/api/v1/mix", map[string]any{
		"snapshot_token": token,
		"volumes":        map[string]float64{"volume_a": 1, "volume_b": 1, "volume_water": 198},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Report domain.FinalReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, domain.DefaultPHTarget, resp.Report.PHTarget, 1e-9)
	assert.InDelta(t, 7.0, resp.Report.PHApplied, 1e-9)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil, 100)
	token := issueToken(t, env)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"malformed weight", "/api/v1/tanks", map[string]any{
			"dosing":  []map[string]string{{"fertilizer_id": "1", "tank": "A", "weight": "abc"}},
			"volumes": map[string]float64{"a": 100},
		}, http.StatusBadRequest},
		{"unknown field", "/api/v1/tanks", map[string]any{"dose": 1}, http.StatusBadRequest},
		{"tampered token", "/api/v1/mix", mixBody(token+"x", 6.0), http.StatusBadRequest},
		{"missing token", "/api/v1/mix", mixBody("", 6.0), http.StatusBadRequest},
		{"no dissociation row", "/api/v1/mix", mixBody(token, 3.0), http.StatusUnprocessableEntity},
		{"pH out of range", "/api/v1/mix", mixBody(token, 14.5), http.StatusBadRequest},
		{"concentration overflows", "/api/v1/tanks", map[string]any{
			"dosing":  []map[string]string{{"fertilizer_id": "1", "tank": "A", "weight": "2"}},
			"volumes": map[string]float64{"a": 1e-310, "b": 100},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil, 10)
	token := issueToken(t, env)

	t.Run("xlsx", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/mix/export?format=xlsx", mixBody(token, 6.0))
		require.Equal(t, http.StatusOK, rec.Code)

		f, err := excelize.OpenReader(rec.Body)
		require.NoError(t, err)
		defer f.Close()
		assert.Contains(t, f.GetSheetList(), "Mix")
	})

	t.Run("pdf", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/mix/export?format=pdf", mixBody(token, 6.0))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("unsupported", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/mix/export?format=csv", mixBody(token, 6.0))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPredictPH(t *testing.T) {
	env := newTestEnv(t, nil, 10)

	rec := env.do(t, http.MethodPost, "/api/v1/ph/predict", map[string]any{"phosphate_g_per_l": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["available"])
	assert.InDelta(t, 7.0, body["predicted_ph"], 1e-9)

	rec = env.do(t, http.MethodPost, "/api/v1/ph/predict", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["available"])
	assert.Less(t, body["predicted_ph"], 7.0)
}

func TestRateLimit(t *testing.T) {
	env := newLimitedTestEnv(t, nil, rate.Every(time.Hour), 2)

	for range 2 {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/fertilizers", nil).Code)
	}
	rec := env.do(t, http.MethodGet, "/api/v1/fertilizers", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.RateLimited), 0)

	// Health endpoints are not limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil).Code)
}
