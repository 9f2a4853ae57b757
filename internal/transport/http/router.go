package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"mcq-queue-service/internal/app"
	"mcq-queue-service/internal/domain"
	"mcq-queue-service/internal/infra/feed"
)

// StatusSource exposes the scheduler snapshot.
type StatusSource interface {
	Status(ctx context.Context) domain.Status
}

// SubmissionObserver is notified of every admission attempt.
type SubmissionObserver interface {
	ObserveSubmission(source string, err error)
}

// Metrics is the part of the metrics package the router mounts.
type Metrics interface {
	SubmissionObserver
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Deps wires the router. Hub and Metrics are optional.
type Deps struct {
	Admission   *app.AdmissionService
	Importer    *app.Importer
	Status      StatusSource
	Hub         *feed.Hub
	Metrics     Metrics
	Logger      *zap.Logger
	MaxUploadMB int
}

// NewRouter mounts every HTTP route of the service.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &Handler{
		admission: d.Admission,
		importer:  d.Importer,
		status:    d.Status,
		observer:  d.Metrics,
		logger:    d.Logger,
		maxUpload: int64(d.MaxUploadMB) << 20,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 10 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/healthz", h.Health)
	r.Get("/status", h.SchedulerStatus)

	r.Route("/mcqs", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/", h.List)
		r.Get("/next", h.Next)
		r.Post("/import", h.Import)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Remove)
	})
	r.Post("/announcements", h.Announce)

	if d.Hub != nil {
		r.Get("/ws", NewWSHandler(d.Hub, d.Logger).ServeWS)
	}
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
