package observability

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Notification metrics
	NotificationsCreated    *prometheus.CounterVec
	NotificationDeliveries  *prometheus.CounterVec
	NotificationSubscribers prometheus.Gauge

	// Business metrics
	InvoicesCreated       prometheus.Counter
	InvoicesMarkedOverdue prometheus.Counter
	PaymentsVerified      *prometheus.CounterVec
	LoginsTotal           *prometheus.CounterVec

	// Scheduler metrics
	JobRunsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicely_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoicely_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		NotificationsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicely_notifications_created_total",
				Help: "Notifications persisted, by category",
			},
			[]string{"category"},
		),
		NotificationDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicely_notification_deliveries_total",
				Help: "Push deliveries to connected subscribers",
			},
			[]string{"result"},
		),
		NotificationSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "invoicely_notification_subscribers",
				Help: "Currently connected notification subscribers",
			},
		),

		InvoicesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "invoicely_invoices_created_total",
				Help: "Invoices created",
			},
		),
		InvoicesMarkedOverdue: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "invoicely_invoices_marked_overdue_total",
				Help: "Invoices flipped to OVERDUE by the sweeper",
			},
		),
		PaymentsVerified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicely_payments_verified_total",
				Help: "Payment verification attempts by result",
			},
			[]string{"result"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicely_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),

		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoicely_job_runs_total",
				Help: "Scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.NotificationsCreated,
		m.NotificationDeliveries,
		m.NotificationSubscribers,
		m.InvoicesCreated,
		m.InvoicesMarkedOverdue,
		m.PaymentsVerified,
		m.LoginsTotal,
		m.JobRunsTotal,
	)

	return m
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewNopMetrics returns metrics registered on a throwaway registry, for tests
// and for components built without an exporter.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by chi route pattern, not raw path.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
