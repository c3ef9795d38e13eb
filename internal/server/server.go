// Package server is the host's HTTP surface: health, status, metrics and the
// radio link endpoint guests dial.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/quizlink/internal/observability"
	"github.com/danmuck/quizlink/internal/quiz"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	Version      = "0.1.0"
	DefaultLink  = "/link"
	shutdownWait = 5 * time.Second
)

// StatusSource reports the running quiz.
type StatusSource interface {
	Status(ctx context.Context) (quiz.Status, error)
}

type Config struct {
	Name        string
	Addr        string
	LinkPath    string
	CORSOrigins []string
}

type Server struct {
	cfg     Config
	status  StatusSource
	link    http.Handler
	router  *gin.Engine
	started time.Time
}

// New builds the router. link may be nil when the host runs over a radio that
// does not need HTTP.
func New(cfg Config, status StatusSource, link http.Handler) *Server {
	if cfg.Name == "" {
		cfg.Name = "quizlink"
	}
	if cfg.LinkPath == "" {
		cfg.LinkPath = DefaultLink
	}

	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		status:  status,
		link:    link,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve listens on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Str("link", s.cfg.LinkPath).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
