// Package middleware holds the Echo middleware shared by every procurement
// route: edge admission, request ids, tenant identity and request metrics.
package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/logger"
	"github.com/furfield/procurement/internal/presentation/http/response"
	"github.com/furfield/procurement/internal/tenant"
)

// APIPathPrefix marks routes served by this service rather than the host.
const APIPathPrefix = "/api/"

// Admission lets API paths through untouched and hands every other path to
// host, the platform's own gate. A nil host admits everything.
func Admission(host echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		gated := next
		if host != nil {
			gated = host(next)
		}
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, APIPathPrefix) {
				return next(c)
			}
			return gated(c)
		}
	}
}

// RequestID assigns an X-Request-ID (honouring one sent by the caller) and
// stores a request-scoped logger carrying it on the request context.
func RequestID(base *zap.Logger) echo.MiddlewareFunc {
	if base == nil {
		base = zap.NewNop()
	}
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			l := base.With(zap.String("request_id", id))
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), l)))
		},
	})
}

// Tenant reads the host-asserted hospital and user headers into the request
// context and rejects requests without a hospital.
func Tenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := tenant.WithIdentity(req.Context(), tenant.Identity{
				HospitalID: req.Header.Get(tenant.HeaderHospitalID),
				UserID:     req.Header.Get(tenant.HeaderUserID),
			})
			id, err := tenant.Require(ctx)
			if err != nil {
				return response.New(c).WithError(err).Build()
			}
			c.SetRequest(req.WithContext(ctx))
			logger.FromContext(ctx, nil).Debug("tenant resolved",
				zap.String("hospital_id", id.HospitalID),
				zap.String("user_id", id.Actor()),
			)
			return next(c)
		}
	}
}

// Metrics records request counts and latencies by method, route and status.
// Collectors already registered on reg are reused.
func Metrics(reg prometheus.Registerer) echo.MiddlewareFunc {
	requests := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procurement",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, by method, route and status.",
	}, []string{"method", "route", "status"}))
	latency := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "procurement",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if err != nil && errors.As(err, &he) {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
