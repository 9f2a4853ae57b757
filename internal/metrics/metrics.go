package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"mcq-queue-service/internal/domain"
)

const namespace = "mcq_queue"

// StatusSource reports the live scheduler status for gauges.
type StatusSource interface {
	Status(ctx context.Context) domain.Status
}

// Metrics owns a private registry so tests can build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	Deliveries      *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts that reached a record, by result.",
		}, []string{"result"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "MCQ submissions by front end and result.",
		}, []string{"source", "result"}),
		RequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "endpoint"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Deliveries,
		m.Submissions,
		m.RequestCounter,
		m.RequestDuration,
	)
	return m
}

// WatchScheduler exposes pending count and run state as gauges read on every scrape.
func (m *Metrics) WatchScheduler(src StatusSource) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_items",
			Help:      "MCQs waiting for delivery.",
		}, func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return float64(src.Status(ctx).Pending)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while the delivery loop is RUNNING, 0 while PAUSED.",
		}, func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if src.Status(ctx).State == domain.StateRunning {
				return 1
			}
			return 0
		}),
	)
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// ObserveSubmission counts one admission attempt from a front end.
func (m *Metrics) ObserveSubmission(source string, err error) {
	result := "accepted"
	switch {
	case err == nil:
	case domain.IsValidation(err):
		result = "rejected"
	default:
		result = "error"
	}
	m.Submissions.WithLabelValues(source, result).Inc()
}

// OnDelivered and OnDeliveryFailed make Metrics a scheduler listener.
func (m *Metrics) OnDelivered(_ context.Context, _ domain.MCQ) {
	m.Deliveries.WithLabelValues("delivered").Inc()
}

func (m *Metrics) OnDeliveryFailed(_ context.Context, item domain.MCQ, _ error) {
	if item.Parked() {
		m.Deliveries.WithLabelValues("parked").Inc()
		return
	}
	m.Deliveries.WithLabelValues("failed").Inc()
}
