package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/malbeclabs/aquabot/internal/metrics"
	"github.com/malbeclabs/aquabot/internal/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed static/index.html
var static embed.FS

type Answerer interface {
	Answer(ctx context.Context, question string) router.Response
}

type AskRequest struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	DataLoaded bool   `json:"data_loaded"`
}

type Server struct {
	log     *slog.Logger
	cfg     *Config
	handler http.Handler
}

func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	s := &Server{log: cfg.Logger, cfg: cfg}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handleIndex)
	r.Post("/ask", s.handleAsk)
	r.Get("/healthz", s.handleHealth)
	if s.cfg.ChartDir != "" {
		prefix := s.cfg.ChartURLPrefix
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(s.cfg.ChartDir)))
		r.Get(prefix+"/*", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			files.ServeHTTP(w, r)
		})
	}

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		s.log.Error("failed to read index page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// handleAsk answers {"message": ...}. Without loaded data every request gets
// the unavailable answer, whatever its body.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Answerer == nil {
		resp := router.Response{Answer: router.UnavailableMessage, Intent: router.IntentUnavailable}
		metrics.Questions.WithLabelValues(string(resp.Intent)).Inc()
		s.writeAnswer(w, resp)
		return
	}

	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.writeAnswer(w, s.cfg.Answerer.Answer(r.Context(), req.Message))
}

func (s *Server) writeAnswer(w http.ResponseWriter, resp router.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("failed to encode answer", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:     "ok",
		DataLoaded: s.cfg.Answerer != nil,
	})
}

// Start runs the server in the background. The returned channel receives the
// error that stopped it, if any, and is closed when it exits.
func (s *Server) Start(ctx context.Context, cancel context.CancelFunc) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Run(ctx); err != nil {
			errCh <- err
			cancel()
		}
	}()
	return errCh
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("starting aquabot server",
		"listener", s.cfg.Listener.Addr().String(),
		"dataLoaded", s.cfg.Answerer != nil,
		"chartDir", s.cfg.ChartDir,
	)

	api := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := api.Serve(s.cfg.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if s.cfg.MetricsListener != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Handler: mux, ReadTimeout: s.cfg.ReadTimeout}
		s.log.Info("serving metrics", "listener", s.cfg.MetricsListener.Addr().String())
		go func() {
			if err := metricsSrv.Serve(s.cfg.MetricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("graceful shutdown error", "error", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	if runErr != nil {
		return runErr
	}
	s.log.Info("server stopped")
	return nil
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
