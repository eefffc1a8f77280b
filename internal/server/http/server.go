package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/logger"
	"github.com/furfield/procurement/internal/observability"
	"github.com/furfield/procurement/internal/transport/http/middleware"
)

// APIPrefix roots every versioned procurement route.
const APIPrefix = "/api/v1"

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho, NewAPIGroup),
	fx.Invoke(Run),
)

// Health is the liveness payload served on /health and /api/health.
type Health struct {
	Service     string    `json:"service"`
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	Port        int       `json:"port"`
	Description string    `json:"description"`
}

// NewEcho configures the Echo router with the shared middleware chain and
// the liveness endpoints.
func NewEcho(cfg config.Config, obs *observability.Manager, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		logger.FromContext(c.Request().Context(), log).Error("http request failed",
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
		c.Echo().DefaultHTTPErrorHandler(err, c)
	}

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID(log))
	e.Use(middleware.Admission(nil))
	if obs != nil && obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}
	if obs != nil && obs.MetricsEnabled() {
		e.Use(middleware.Metrics(prometheus.DefaultRegisterer))
	}

	health := func(c echo.Context) error {
		return c.JSON(http.StatusOK, Health{
			Service:     cfg.App.Name,
			Status:      "healthy",
			Version:     cfg.App.Version,
			Timestamp:   time.Now().UTC(),
			Port:        cfg.App.Port,
			Description: cfg.App.Description,
		})
	}
	e.GET("/health", health)
	e.GET("/api/health", health)

	if obs != nil && obs.MetricsEnabled() && obs.MetricsHandler() != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(obs.MetricsHandler()))
	}

	return e
}

// NewAPIGroup returns the tenant-scoped group procurement handlers register on.
func NewAPIGroup(e *echo.Echo) *echo.Group {
	return e.Group(APIPrefix, middleware.Tenant())
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
