package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fan-out modes used as metric labels and log fields.
const (
	FanoutModeStaff   = "staff"
	FanoutModeParents = "parents"
)

// MetricsService encapsulates Prometheus instrumentation for the campaign service.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	fanoutResults   *prometheus.CounterVec
	fanoutDuration  *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	jobsDropped     prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		fanoutResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_fanout_recipients_total",
			Help: "Notification writes per fan-out mode and outcome",
		}, []string{"mode", "outcome"}),
		fanoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_fanout_duration_seconds",
			Help:    "Wall time of a complete fan-out",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_transitions_total",
			Help: "Campaign status transitions by target status",
		}, []string{"status"}),
		jobsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_jobs_dropped_total",
			Help: "Staff notification jobs that could not be enqueued",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.fanoutResults, m.fanoutDuration, m.transitions, m.jobsDropped, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveNotificationFanout records the outcome of one fan-out.
func (m *MetricsService) ObserveNotificationFanout(mode string, sent, failed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.fanoutResults.WithLabelValues(mode, "sent").Add(float64(sent))
	m.fanoutResults.WithLabelValues(mode, "failed").Add(float64(failed))
	m.fanoutDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordCampaignTransition counts a successful status change.
func (m *MetricsService) RecordCampaignTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RecordDroppedJob counts a staff notification job that never reached the queue.
func (m *MetricsService) RecordDroppedJob() {
	if m == nil {
		return
	}
	m.jobsDropped.Inc()
}
