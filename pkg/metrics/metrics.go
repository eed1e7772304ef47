package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metric names
const (
	BotUpdatesTotal          = "bot_updates_total"
	BotErrorsTotal           = "bot_errors_total"
	ProviderRequestsTotal    = "provider_requests_total"
	SnapshotLoadsTotal       = "snapshot_loads_total"
	ChatRequestsTotal        = "chat_requests_total"
	ProviderRequestDuration  = "provider_request_duration_seconds"
	SnapshotLoadDuration     = "snapshot_load_duration_seconds"
	ActiveSessions           = "active_sessions"
	defaultAverageResponseMs = 0.0
)

type Metrics struct {
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	registerer prometheus.Registerer
}

// New registers the collectors with prometheus.DefaultRegisterer. A second call
// against the same registerer shares the collectors registered by the first.
func New() *Metrics {
	m := &Metrics{
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		registerer: prometheus.DefaultRegisterer,
	}

	m.counters[BotUpdatesTotal] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: BotUpdatesTotal,
			Help: "Total number of bot updates processed",
		},
		[]string{"type"},
	)

	m.counters[BotErrorsTotal] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: BotErrorsTotal,
			Help: "Total number of bot errors",
		},
		[]string{"type"},
	)

	m.counters[ProviderRequestsTotal] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ProviderRequestsTotal,
			Help: "Total number of weather provider requests",
		},
		[]string{"endpoint", "status"},
	)

	m.counters[SnapshotLoadsTotal] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: SnapshotLoadsTotal,
			Help: "Snapshot pipeline runs by locator source and outcome",
		},
		[]string{"source", "result"},
	)

	m.counters[ChatRequestsTotal] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ChatRequestsTotal,
			Help: "Assistant chat requests by outcome",
		},
		[]string{"result"},
	)

	m.histograms[ProviderRequestDuration] = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    ProviderRequestDuration,
			Help:    "Duration of weather provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	m.histograms[SnapshotLoadDuration] = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    SnapshotLoadDuration,
			Help:    "End-to-end duration of locate, fetch and aggregate",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	m.gauges[ActiveSessions] = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: ActiveSessions,
			Help: "Number of sessions tracked by this process",
		},
		[]string{},
	)

	for name, counter := range m.counters {
		m.counters[name] = register(m.registerer, counter)
	}
	for name, histogram := range m.histograms {
		m.histograms[name] = register(m.registerer, histogram)
	}
	for name, gauge := range m.gauges {
		m.gauges[name] = register(m.registerer, gauge)
	}

	return m
}

func register[T prometheus.Collector](r prometheus.Registerer, c T) T {
	if err := r.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	return c
}

func (m *Metrics) IncrementCounter(name string, labelValues ...string) {
	if m == nil {
		return
	}
	if counter, exists := m.counters[name]; exists {
		counter.WithLabelValues(labelValues...).Inc()
	}
}

func (m *Metrics) ObserveHistogram(name string, value float64, labelValues ...string) {
	if m == nil {
		return
	}
	if histogram, exists := m.histograms[name]; exists {
		histogram.WithLabelValues(labelValues...).Observe(value)
	}
}

func (m *Metrics) SetGauge(name string, value float64, labelValues ...string) {
	if m == nil {
		return
	}
	if gauge, exists := m.gauges[name]; exists {
		gauge.WithLabelValues(labelValues...).Set(value)
	}
}

// ObserveRequest records one provider call; it satisfies weather.RequestObserver
func (m *Metrics) ObserveRequest(endpoint, status string, elapsed time.Duration) {
	m.IncrementCounter(ProviderRequestsTotal, endpoint, status)
	m.ObserveHistogram(ProviderRequestDuration, elapsed.Seconds(), endpoint)
}

// Handler exposes the registry the collectors were registered with
func (m *Metrics) Handler() http.Handler {
	if m != nil {
		if g, ok := m.registerer.(prometheus.Gatherer); ok {
			return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
		}
	}
	return promhttp.Handler()
}

// GetAverageDuration returns the mean of a histogram across all label sets, in milliseconds.
// Zero means no observations yet.
func (m *Metrics) GetAverageDuration(name string) float64 {
	if m == nil {
		return defaultAverageResponseMs
	}
	histogram, exists := m.histograms[name]
	if !exists {
		return defaultAverageResponseMs
	}

	metricChan := make(chan prometheus.Metric, 16)

	go func() {
		histogram.Collect(metricChan)
		close(metricChan)
	}()

	var totalSum float64
	var totalCount uint64

	for metric := range metricChan {
		dtoMetric := &dto.Metric{}
		if err := metric.Write(dtoMetric); err != nil {
			continue
		}

		if dtoMetric.Histogram != nil {
			totalSum += dtoMetric.Histogram.GetSampleSum()
			totalCount += dtoMetric.Histogram.GetSampleCount()
		}
	}

	if totalCount > 0 {
		return totalSum / float64(totalCount) * 1000.0
	}

	return defaultAverageResponseMs
}
