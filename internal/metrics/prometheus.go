package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Hook decisions, used as the decision label of calls_observed_total.
const (
	DecisionCaptured  = "captured"
	DecisionSkipped   = "skipped"
	DecisionThrottled = "throttled"
	DecisionError     = "error"
)

var (
	defaultCollector *MetricsCollector
	once             sync.Once
)

// GetMetricsCollector returns the singleton collector registered on the
// default prometheus registry.
func GetMetricsCollector(namespace, appName string) *MetricsCollector {
	once.Do(func() {
		defaultCollector = NewMetricsCollector(namespace, appName, nil)
	})
	return defaultCollector
}

type MetricsCollector struct {
	AppName          string
	CallsObserved    *prometheus.CounterVec
	RecordsPersisted *prometheus.CounterVec
	PersistErrors    *prometheus.CounterVec
	RecordsDropped   *prometheus.CounterVec
	Purges           *prometheus.CounterVec
	CaptureDuration  *prometheus.HistogramVec
	QueueSize        *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

type MetricsResponse struct {
	AppName   string                 `json:"app_name"`
	Timestamp time.Time              `json:"timestamp"`
	Metrics   map[string]interface{} `json:"metrics"`
}

// NewMetricsCollector registers the gozcu metrics on reg, or on the default
// registry when reg is nil.
func NewMetricsCollector(namespace, appName string, reg *prometheus.Registry) *MetricsCollector {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &MetricsCollector{
		AppName:  appName,
		gatherer: gatherer,
		CallsObserved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_observed_total",
				Help:      "Completed API calls seen by the hook, by decision",
			},
			[]string{"app", "decision"},
		),

		RecordsPersisted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_persisted_total",
				Help:      "Records written to the log store",
			},
			[]string{"app"},
		),

		PersistErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_errors_total",
				Help:      "Failed record writes",
			},
			[]string{"app", "type"},
		),

		RecordsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_dropped_total",
				Help:      "Records discarded before reaching the log store",
			},
			[]string{"app", "reason"},
		),

		Purges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purges_total",
				Help:      "Completed purges of the log store",
			},
			[]string{"app"},
		),

		CaptureDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capture_duration_seconds",
				Help:      "Time spent by the hook on one completed call",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"app", "decision"},
		),

		QueueSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_size",
				Help:      "Current size of the queue",
			},
			[]string{"app", "queue"},
		),
	}
}

func (m *MetricsCollector) ObserveCall(decision string, duration time.Duration) {
	m.CallsObserved.WithLabelValues(m.AppName, decision).Inc()
	m.CaptureDuration.WithLabelValues(m.AppName, decision).Observe(duration.Seconds())
}

func (m *MetricsCollector) IncPersisted() {
	m.RecordsPersisted.WithLabelValues(m.AppName).Inc()
}

func (m *MetricsCollector) LogPersistError(errorType string) {
	m.PersistErrors.WithLabelValues(m.AppName, errorType).Inc()
}

func (m *MetricsCollector) IncDropped(reason string) {
	m.RecordsDropped.WithLabelValues(m.AppName, reason).Inc()
}

func (m *MetricsCollector) IncPurges() {
	m.Purges.WithLabelValues(m.AppName).Inc()
}

func (m *MetricsCollector) ObserveQueueSize(queueType string, size float64) {
	m.QueueSize.WithLabelValues(m.AppName, queueType).Set(size)
}

// Handler serves the registry in the prometheus text format.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// GetMetricsJSON returns metrics in JSON format
func (m *MetricsCollector) GetMetricsJSON() ([]byte, error) {
	metrics := MetricsResponse{
		AppName:   m.AppName,
		Timestamp: time.Now(),
		Metrics: map[string]interface{}{
			"calls_observed_total":     m.getCounterMetrics(m.CallsObserved),
			"records_persisted_total":  m.getCounterMetrics(m.RecordsPersisted),
			"persist_errors_total":     m.getCounterMetrics(m.PersistErrors),
			"records_dropped_total":    m.getCounterMetrics(m.RecordsDropped),
			"purges_total":             m.getCounterMetrics(m.Purges),
			"capture_duration_seconds": m.getHistogramMetrics(m.CaptureDuration),
			"queue_size":               m.getGaugeVecMetrics(m.QueueSize),
		},
	}

	return json.Marshal(metrics)
}

func collect(c prometheus.Collector) []*dto.Metric {
	ch := make(chan prometheus.Metric, 1000)
	c.Collect(ch)
	close(ch)

	var out []*dto.Metric
	for metric := range ch {
		dtoMetric := &dto.Metric{}
		if err := metric.Write(dtoMetric); err != nil {
			continue
		}
		out = append(out, dtoMetric)
	}
	return out
}

func (m *MetricsCollector) getHistogramMetrics(vec *prometheus.HistogramVec) map[string]float64 {
	metrics := make(map[string]float64)
	for _, dtoMetric := range collect(vec) {
		hist := dtoMetric.GetHistogram()
		name := getMetricName(dtoMetric)
		metrics[name+",sum"] = hist.GetSampleSum()
		metrics[name+",count"] = float64(hist.GetSampleCount())
	}
	return metrics
}

func (m *MetricsCollector) getCounterMetrics(vec *prometheus.CounterVec) map[string]float64 {
	metrics := make(map[string]float64)
	for _, dtoMetric := range collect(vec) {
		metrics[getMetricName(dtoMetric)] = dtoMetric.GetCounter().GetValue()
	}
	return metrics
}

func (m *MetricsCollector) getGaugeVecMetrics(vec *prometheus.GaugeVec) map[string]float64 {
	metrics := make(map[string]float64)
	for _, dtoMetric := range collect(vec) {
		metrics[getMetricName(dtoMetric)] = dtoMetric.GetGauge().GetValue()
	}
	return metrics
}

func getMetricName(dtoMetric *dto.Metric) string {
	var labels []string
	for _, label := range dtoMetric.GetLabel() {
		labels = append(labels, fmt.Sprintf("%s=%s", label.GetName(), label.GetValue()))
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
