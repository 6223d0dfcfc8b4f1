// Package server exposes the caption pipeline over HTTP: an upload form,
// a JSON API, file downloads, health and metrics.
package server

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZacxDev/video-captioner/internal/config"
	"github.com/ZacxDev/video-captioner/internal/processor"
	"github.com/ZacxDev/video-captioner/internal/storage"
	"github.com/ZacxDev/video-captioner/pkg/types"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

//go:embed templates/*.html
var templateFS embed.FS

// Captioner runs a caption job.
type Captioner interface {
	Process(ctx context.Context, job processor.Job) (*processor.Result, error)
	Format() types.OutputFormat
}

// Server handles caption uploads.
type Server struct {
	cfg       *config.Config
	captioner Captioner
	store     *storage.Store
	logger    *slog.Logger
	metrics   *Metrics
	limiter   *Limiter
	jobs      *semaphore.Weighted
	pages     *template.Template
}

// New creates a server. The store's root is the configured upload dir.
func New(cfg *config.Config, captioner Captioner, store *storage.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse templates")
	}

	return &Server{
		cfg:       cfg,
		captioner: captioner,
		store:     store,
		logger:    logger.With(slog.String("component", "server")),
		metrics:   NewMetrics(),
		limiter:   NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		jobs:      semaphore.NewWeighted(cfg.MaxConcurrentJobs),
		pages:     pages,
	}, nil
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// RegisterRoutes registers all routes on r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	key := ClientKey(s.cfg.TrustProxyHeaders)
	limitPage := s.limiter.Middleware(key, s.rateLimitedPage)
	limitAPI := s.limiter.Middleware(key, s.rateLimited)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.Handle("/", limitPage(http.HandlerFunc(s.handleForm))).Methods(http.MethodPost)
	r.Handle("/api/captions", limitAPI(http.HandlerFunc(s.handleAPI))).Methods(http.MethodPost)
	r.HandleFunc("/files/{id}/{name}", s.handleFile).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

// Handler returns the routed handler with request metrics applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.metrics.Middleware)
	s.RegisterRoutes(r)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.store.RunSweeper(ctx, s.cfg.SweepInterval, s.cfg.Retention)
	go s.cleanupLimiters(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.cfg.ListenAddr), slog.String("upload_dir", s.store.Root()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}
	return nil
}

func (s *Server) cleanupLimiters(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Cleanup(10 * time.Minute)
		}
	}
}
