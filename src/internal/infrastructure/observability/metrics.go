package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loyalty"

// Metrics 服務的 Prometheus 指標
//
// 每個實例擁有自己的 Registry，測試可以並行建立多個實例
type Metrics struct {
	registry *prometheus.Registry

	domainEvents   *prometheus.CounterVec
	couponExternal *prometheus.CounterVec
	couponDispatch *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	sweepRuns      *prometheus.CounterVec
	sweepEntries   *prometheus.CounterVec
	sweepPoints    prometheus.Counter
	sweepDuration  prometheus.Histogram
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewMetrics 建立並註冊所有指標
func NewMetrics() *Metrics {
	m := &Metrics{
		domainEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Domain events published after ledger commits, by event type.",
		}, []string{"type"}),
		couponExternal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupon",
			Name:      "external_creations_total",
			Help:      "External coupon creation attempts made during redemption, by outcome.",
		}, []string{"outcome"}),
		couponDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupon",
			Name:      "dispatch_attempts_total",
			Help:      "Background external coupon retries, by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Commerce platform events handled, by normalized type and outcome.",
		}, []string{"type", "outcome"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "sweeps_total",
			Help:      "Expiration sweeps executed, by result.",
		}, []string{"result"}),
		sweepEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "entries_total",
			Help:      "Earn entries processed by the expiration sweeper, by result.",
		}, []string{"result"}),
		sweepPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "points_expired_total",
			Help:      "Points removed from balances by expiration.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "expiry",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of expiration sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method, and status code.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.domainEvents,
		m.couponExternal,
		m.couponDispatch,
		m.webhookEvents,
		m.sweepRuns,
		m.sweepEntries,
		m.sweepPoints,
		m.sweepDuration,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

// Handler /metrics 端點
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 供測試讀取
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveDomainEvent(eventType string) {
	if m == nil {
		return
	}
	m.domainEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveCouponExternal(outcome string) {
	if m == nil {
		return
	}
	m.couponExternal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCouponDispatch(outcome string) {
	if m == nil {
		return
	}
	m.couponDispatch.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// SweepStats 一次過期掃描的統計
type SweepStats struct {
	Expired       int
	MarkedOnly    int
	Skipped       int
	Failed        int
	PointsExpired int
	Duration      time.Duration
}

// ObserveSweep 記錄一次過期掃描；err != nil 表示掃描中止
func (m *Metrics) ObserveSweep(stats SweepStats, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweepRuns.WithLabelValues("error").Inc()
		return
	}
	m.sweepRuns.WithLabelValues("ok").Inc()
	m.sweepEntries.WithLabelValues("expired").Add(float64(stats.Expired))
	m.sweepEntries.WithLabelValues("marked_only").Add(float64(stats.MarkedOnly))
	m.sweepEntries.WithLabelValues("skipped").Add(float64(stats.Skipped))
	m.sweepEntries.WithLabelValues("failed").Add(float64(stats.Failed))
	m.sweepPoints.Add(float64(stats.PointsExpired))
	m.sweepDuration.Observe(stats.Duration.Seconds())
}

// ObserveHTTP 記錄 HTTP 請求；route 應為路由樣式而非實際路徑
func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}
