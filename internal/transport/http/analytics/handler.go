package analytics

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/furfield/procurement/internal/presentation/http/response"
	service "github.com/furfield/procurement/internal/service/analytics"
	"github.com/furfield/procurement/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/furfield/procurement/transport/http/analytics")

// Handler exposes the purchasing dashboard figures over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an analytics Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided API group.
func Register(api *echo.Group, h *Handler) {
	api.GET("/analytics/metrics", h.metrics)
}

func (h *Handler) metrics(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "analytics.metrics")
	defer span.End()

	metrics, err := h.svc.GetMetrics(ctx, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(metrics).Build()
}
