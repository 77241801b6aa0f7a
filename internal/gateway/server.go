package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/metrics"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// Source is the read contract the server exposes.
type Source interface {
	ListDatasets(ctx context.Context, module string) ([]*types.Dataset, error)
	ListRecords(ctx context.Context, module, datasetID string) ([]*types.Record, error)
}

// HealthFunc reports whether the installation runs without any remote tier.
type HealthFunc func() (offline bool)

// Server serves the gateway REST contract.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewRouter builds the chi router: GET /files, GET /records, GET /healthz
// and GET /metrics.
func NewRouter(src Source, health HealthFunc, log *zap.Logger) http.Handler {
	h := &handler{src: src, health: health, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/files", h.listFiles)
	r.Get("/records", h.listRecords)
	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// NewServer wraps NewRouter in an http.Server listening on addr.
func NewServer(addr string, src Source, health HealthFunc, log *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(src, health, log),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gateway server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("gateway server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

type handler struct {
	src    Source
	health HealthFunc
	log    *zap.Logger
}

func (h *handler) listFiles(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	if err := types.ValidateModule(module); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := h.src.ListDatasets(r.Context(), module)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if out == nil {
		out = []*types.Dataset{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	module := q.Get("module")
	if err := types.ValidateModule(module); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := h.src.ListRecords(r.Context(), module, q.Get("fileId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if out == nil {
		out = []*types.Record{}
	}
	writeJSON(w, http.StatusOK, out)
}

type healthResponse struct {
	Status  string `json:"status"`
	Offline bool   `json:"offline"`
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.health != nil {
		resp.Offline = h.health()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidModule), errors.Is(err, types.ErrInvalidID):
		status = http.StatusBadRequest
	}
	h.log.Warn("gateway request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	writeError(w, status, err)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request at debug level and counts it by route.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
