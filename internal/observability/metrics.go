package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/backlog-dim/backlog-dim/internal/audit"
)

// Metrics owns the application registry, the HTTP collectors and the audit
// trail write counter.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	auditWrites     *prometheus.CounterVec
}

// NewMetrics builds a registry with runtime collectors, HTTP and audit metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backlog_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backlog_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	auditWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backlog_audit_writes_total",
		Help: "Audit entries handed to the recorder by table and outcome.",
	}, []string{"table", "outcome"})
	registry.MustRegister(
		requests,
		duration,
		auditWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		auditWrites:     auditWrites,
	}
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency for every request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry so packages can add their own collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// AuditWriter records one audit entry.
type AuditWriter interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type countingAuditWriter struct {
	next    AuditWriter
	counter *prometheus.CounterVec
}

func (c countingAuditWriter) Record(ctx context.Context, entry audit.Entry) error {
	err := c.next.Record(ctx, entry)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.counter.WithLabelValues(entry.Table, outcome).Inc()
	return err
}

// InstrumentAudit counts every write that passes through next.
func (m *Metrics) InstrumentAudit(next AuditWriter) AuditWriter {
	if m == nil || next == nil {
		return next
	}
	return countingAuditWriter{next: next, counter: m.auditWrites}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
