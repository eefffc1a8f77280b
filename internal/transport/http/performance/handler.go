package performance

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/presentation/http/response"
	service "github.com/furfield/procurement/internal/service/performance"
	"github.com/furfield/procurement/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/furfield/procurement/transport/http/performance")

// Handler exposes supplier evaluations over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a vendor performance Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided API group.
func Register(api *echo.Group, h *Handler) {
	g := api.Group("/suppliers/:id/performance")
	g.GET("", h.list)
	g.POST("", h.record)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "performance.list", supplierAttr(c))
	defer span.End()

	rows, err := h.svc.ListBySupplier(ctx, c.Param("id"), id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(rows).WithMeta("count", len(rows)).Build()
}

func (h *Handler) record(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.PerformanceForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "performance.record", supplierAttr(c))
	defer span.End()

	rec, err := h.svc.Record(ctx, c.Param("id"), form, id.HospitalID, id.Actor())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(rec).Build()
}

func supplierAttr(c echo.Context) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("supplier.id", c.Param("id")))
}
