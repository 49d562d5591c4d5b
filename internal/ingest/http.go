package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bjaus/pushdispatch/internal/logx"
)

const maxEventBytes = 1 << 20

// HandlerOption configures the HTTP handler.
type HandlerOption func(*handler)

// WithMetrics serves h at GET /metrics.
func WithMetrics(h http.Handler) HandlerOption {
	return func(hd *handler) {
		hd.metrics = h
	}
}

// WithHealthCheck adds a check to GET /healthz. The endpoint reports 503
// while any check fails.
func WithHealthCheck(name string, check func() error) HandlerOption {
	return func(hd *handler) {
		hd.checks = append(hd.checks, healthCheck{name: name, check: check})
	}
}

type healthCheck struct {
	name  string
	check func() error
}

type handler struct {
	proc    Processor
	metrics http.Handler
	checks  []healthCheck
}

// NewHandler returns the HTTP surface of the dispatcher:
//
//	POST /events   process one raw event, reply with a Response
//	GET  /healthz  liveness and dependency checks
//	GET  /metrics  Prometheus metrics, when configured
func NewHandler(p Processor, opts ...HandlerOption) http.Handler {
	hd := &handler{proc: p}
	for _, opt := range opts {
		opt(hd)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/events", hd.events)
	r.Get("/healthz", hd.health)
	if hd.metrics != nil {
		r.Method(http.MethodGet, "/metrics", hd.metrics)
	}
	return r
}

func (hd *handler) events(w http.ResponseWriter, r *http.Request) {
	ctx := logx.WithCtx(r.Context(),
		slog.String("ingest", "http"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, Response{Outcome: "rejected", Error: err.Error()})
		return
	}

	res, err := hd.proc.Process(ctx, raw)
	if err != nil {
		logx.From(ctx).Warn("event rejected", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, newResponse(res, err))
		return
	}
	writeJSON(w, http.StatusOK, newResponse(res, nil))
}

func (hd *handler) health(w http.ResponseWriter, _ *http.Request) {
	failed := map[string]string{}
	for _, c := range hd.checks {
		if err := c.check(); err != nil {
			failed[c.name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
