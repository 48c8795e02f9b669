package edge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"azchat/internal/blob"
	"azchat/internal/config"
	"azchat/internal/search/edgefn"
)

// StoragePath is where the storage function is mounted.
const StoragePath = "/functions/v1/azure-storage"

type Server struct {
	router  *gin.Engine
	cfg     config.EdgeConfig
	storage *blob.Client
	log     zerolog.Logger
}

type Option func(*Server)

// WithBlobClient replaces the blob client built from the storage settings.
func WithBlobClient(c *blob.Client) Option {
	return func(s *Server) { s.storage = c }
}

func NewServer(cfg config.EdgeConfig, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		log: log.With().Str("component", "edge").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.storage == nil {
		s.storage = blob.NewClient(blob.Config{
			Account:   cfg.Storage.Account,
			Key:       cfg.Storage.Key,
			Container: cfg.Storage.Container,
			Timeout:   time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		})
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(s.log))
	router.Use(MetricsRecorder())
	router.Use(CORS())
	s.router = router
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "azchat-edge"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.POST(edgefn.SearchPath, s.handleSearch)
	s.router.POST(StoragePath, s.handleStorage)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("edge server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info().Msg("edge server shutting down")
	return srv.Shutdown(shutdownCtx)
}
