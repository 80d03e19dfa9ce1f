package metrics

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollector() *MetricsCollector {
	return NewMetricsCollector("gozcu", "test", prometheus.NewRegistry())
}

func TestObserveCall(t *testing.T) {
	m := newCollector()
	m.ObserveCall(DecisionCaptured, time.Millisecond)
	m.ObserveCall(DecisionCaptured, time.Millisecond)
	m.ObserveCall(DecisionSkipped, time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallsObserved.WithLabelValues("test", DecisionCaptured)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsObserved.WithLabelValues("test", DecisionSkipped)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.CaptureDuration))
}

func TestCounters(t *testing.T) {
	m := newCollector()
	m.IncPersisted()
	m.LogPersistError("create")
	m.IncDropped("queue_full")
	m.IncDropped("queue_full")
	m.IncPurges()
	m.ObserveQueueSize("records", 7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsPersisted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Purges))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.QueueSize))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := newCollector()
	m.IncPersisted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gozcu_records_persisted_total{app="test"} 1`)
}

func TestGetMetricsJSON(t *testing.T) {
	m := newCollector()
	m.ObserveCall(DecisionThrottled, time.Millisecond)
	m.IncDropped("closed")

	raw, err := m.GetMetricsJSON()
	require.NoError(t, err)

	var resp struct {
		AppName string                        `json:"app_name"`
		Metrics map[string]map[string]float64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "test", resp.AppName)
	assert.Equal(t, 1.0, resp.Metrics["calls_observed_total"]["app=test,decision=throttled"])
	assert.Equal(t, 1.0, resp.Metrics["records_dropped_total"]["app=test,reason=closed"])
	assert.Equal(t, 1.0, resp.Metrics["capture_duration_seconds"]["app=test,decision=throttled,count"])
}
