package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/splitwise-relay/pkg/apiresponses"
	"github.com/telekom/splitwise-relay/pkg/config"
	"github.com/telekom/splitwise-relay/pkg/metrics"
	"github.com/telekom/splitwise-relay/pkg/system"
	"github.com/telekom/splitwise-relay/pkg/version"
)

const rootMessage = "Splitwise Backend is running!"

// processStarted anchors the uptime reported by /health.
var processStarted = time.Now()

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	gin     *gin.Engine
	config  config.Config
	log     *zap.SugaredLogger
	started time.Time
	now     func() time.Time
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
	// Uptime is the process uptime in seconds.
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(accessLog(log)...)
	engine.Use(
		ginzap.RecoveryWithZap(log, true),
		system.RequestLogger(log.Sugar()),
	)

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "http://127.0.0.1:8080"},
				AllowMethods: []string{"GET", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Content-Type", system.RequestIDHeader},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:     engine,
		config:  cfg,
		log:     log.Sugar(),
		started: processStarted,
		now:     time.Now,
	}

	engine.GET("/", s.getRoot)
	engine.GET("/health", s.getHealth)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("/api/debug/buildinfo", s.getBuildInfo)

	return s
}

// RegisterAll mounts each controller on its own base path.
func (s *Server) RegisterAll(controllers []APIController) error {
	for _, c := range controllers {
		if err := c.Register(s.gin.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddress(),
		Handler:           s.gin,
		ReadHeaderTimeout: s.config.Server.GetReadHeaderTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Backend running", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getRoot(c *gin.Context) {
	apiresponses.RespondText(c, http.StatusOK, rootMessage)
}

func (s *Server) getHealth(c *gin.Context) {
	now := s.now()
	apiresponses.RespondOK(c, HealthStatus{
		Status:    "ok",
		Uptime:    now.Sub(s.started).Seconds(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) getBuildInfo(c *gin.Context) {
	apiresponses.RespondOK(c, version.GetBuildInfo())
}
