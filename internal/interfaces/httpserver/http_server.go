package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"line-dify-bridge/internal/config"
	"line-dify-bridge/internal/interfaces/httpserver/handlers"
	"line-dify-bridge/internal/interfaces/httpserver/middlewares"
	"line-dify-bridge/internal/interfaces/httpserver/routes"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HttpServer serves the LINE webhook, the admin API and the probes.
type HttpServer struct {
	cfg    *config.Config
	engine *gin.Engine
	log    zerolog.Logger
}

func New(cfg *config.Config, log zerolog.Logger, handlerProvider *handlers.Provider, ready ReadinessCheck) *HttpServer {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middlewareChain(cfg, log)...)

	// probes and /metrics stay outside basic auth
	registerPublicRoutes(engine, cfg, ready)
	routes.NewProvider(handlerProvider, middlewares.BasicAuth(cfg.AdminUser, cfg.AdminPassword, log)).Register(engine)

	return &HttpServer{cfg: cfg, engine: engine, log: log.With().Str("component", "http").Logger()}
}

func middlewareChain(cfg *config.Config, log zerolog.Logger) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{middlewares.RequestID(), middlewares.Recovery(log)}
	if cfg.EnableTracing {
		chain = append(chain, middlewares.TracingMiddleware(cfg.ServiceName))
	}
	chain = append(chain, middlewares.LoggingMiddleware(log))
	if cfg.MetricsEnabled {
		chain = append(chain, middlewares.MetricsMiddleware())
	}
	return chain
}

func (s *HttpServer) Handler() http.Handler {
	return s.engine
}

// Run listens until ctx is cancelled, then drains in-flight requests for at
// most ShutdownTimeout. A listener failure is returned immediately.
func (s *HttpServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err := <-listenErr:
		s.log.Error().Err(err).Msg("listener stopped")
		return err
	case <-ctx.Done():
	}

	s.log.Info().Dur("timeout", s.cfg.ShutdownTimeout).Msg("draining http server")
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(drainCtx)
}

func registerPublicRoutes(engine *gin.Engine, cfg *config.Config, ready ReadinessCheck) {
	engine.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "Hello World!") })
	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })
	engine.GET("/readyz", readiness(ready))
	if cfg.MetricsEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

func readiness(ready ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
