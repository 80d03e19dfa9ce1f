package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/gozcu/internal/config"
	"github.com/tuncerburak97/gozcu/internal/metrics"
	"github.com/tuncerburak97/gozcu/internal/model"
	"github.com/tuncerburak97/gozcu/internal/ratelimit"
	"github.com/tuncerburak97/gozcu/internal/repository/memory"
	"github.com/tuncerburak97/gozcu/internal/repository/repotest"
)

type fixture struct {
	app      *fiber.App
	repo     *memory.MemoryRepository
	settings *config.MemorySettings
	ids      []string
}

func newFixture(t *testing.T, limiter *ratelimit.Service) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewMemoryRepository()
	f := &fixture{repo: repo, settings: config.NewMemorySettings([]string{"license"})}

	for i, rec := range []*model.Record{
		repotest.NewRecord("https://license.example.com/a", true, 1),
		repotest.NewRecord("https://license.example.com/b", false, 2),
		repotest.NewRecord("https://license.example.com/c", true, 3),
	} {
		id, err := repo.Create(ctx, rec)
		require.NoError(t, err, "record %d", i)
		f.ids = append(f.ids, id)
	}

	m := metrics.NewMetricsCollector("gozcu", "test", prometheus.NewRegistry())
	f.app = NewApp(config.ServerConfig{}, NewHandler(repo, f.settings, m, nil), limiter)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestListLogs(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list ListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.EqualValues(t, 3, list.Total)
	require.Len(t, list.Items, 3)
	assert.Equal(t, f.ids[2], list.Items[0].ID)
	assert.Equal(t, model.DefaultListLimit, list.Limit)

	resp, body = f.do(t, http.MethodGet, "/api/logs?status=failure", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, f.ids[1], list.Items[0].ID)

	resp, body = f.do(t, http.MethodGet, "/api/logs?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, f.ids[1], list.Items[0].ID)

	resp, _ = f.do(t, http.MethodGet, "/api/logs?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetLog(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/api/logs/"+f.ids[0], "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec model.Record
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, "https://license.example.com/a - Success", rec.Title)
	assert.Equal(t, "200", rec.Fields[model.FieldResponseCode])

	resp, body = f.do(t, http.MethodGet, "/api/logs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "record not found")
}

func TestDeleteLog(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, http.MethodDelete, "/api/logs/"+f.ids[0], "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/logs/"+f.ids[0], "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	count, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestPurgeLogs(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < 2; i++ {
		resp, _ := f.do(t, http.MethodDelete, "/api/logs", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	fields, err := f.repo.GetFields(context.Background(), f.ids[0])
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got SettingsResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []string{"license"}, got.URLs)

	resp, body = f.do(t, http.MethodPut, "/api/settings", `{"urls":"  license.example.com \n\n<b>billing</b>\r\n"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []string{"license.example.com", "billing"}, got.URLs)
	assert.Equal(t, "license.example.com\nbilling", got.Text)
	assert.Equal(t, got.URLs, f.settings.Load().URLs)

	resp, body = f.do(t, http.MethodPut, "/api/settings", `{"urls":["a.example", " b.example "]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []string{"a.example", "b.example"}, got.URLs)

	resp, body = f.do(t, http.MethodPut, "/api/settings", `{"urls":[]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []string{}, got.URLs)

	resp, _ = f.do(t, http.MethodPut, "/api/settings", `{"urls":42}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","records":3}`, string(body))

	f.do(t, http.MethodDelete, "/api/logs", "")

	resp, body = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `gozcu_purges_total{app="test"} 1`)

	resp, body = f.do(t, http.MethodGet, "/metrics/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"app_name":"test"`)
}

func TestAPIRateLimit(t *testing.T) {
	store := ratelimit.NewMemoryStore(time.Minute)
	defer store.Close()
	f := newFixture(t, ratelimit.NewService(1, time.Minute, store))

	resp, _ := f.do(t, http.MethodGet, "/api/settings", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/api/settings", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
