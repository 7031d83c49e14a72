// Package metrics exposes client-side Prometheus collectors.
//
// Every method is safe on a nil *Metrics so packages can run without
// instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "debtease_client"

type Metrics struct {
	reg *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	realtimeState   prometheus.Gauge
	realtimeFrames  *prometheus.CounterVec
	subscriptions   prometheus.Gauge
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API calls by method and normalized status code.",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Silent token refresh attempts by outcome.",
		}, []string{"outcome"}),
		realtimeState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connected",
			Help:      "1 while the realtime channel is connected.",
		}),
		realtimeFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_frames_total",
			Help:      "Realtime frames by outcome (delivered, dropped).",
		}, []string{"outcome"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscriptions",
			Help:      "Registered realtime subscriptions.",
		}),
	}

	m.reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.refreshes,
		m.realtimeState,
		m.realtimeFrames,
		m.subscriptions,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry is exposed for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) RefreshOutcome(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RealtimeConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.realtimeState.Set(1)
		return
	}
	m.realtimeState.Set(0)
}

func (m *Metrics) FrameDelivered() {
	if m == nil {
		return
	}
	m.realtimeFrames.WithLabelValues("delivered").Inc()
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.realtimeFrames.WithLabelValues("dropped").Inc()
}

func (m *Metrics) Subscriptions(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Set(float64(n))
}
