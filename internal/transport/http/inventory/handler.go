package inventory

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/presentation/http/response"
	service "github.com/furfield/procurement/internal/service/inventory"
	"github.com/furfield/procurement/internal/transport/http/request"
	"github.com/furfield/procurement/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/furfield/procurement/transport/http/inventory")

// Handler exposes stock endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an inventory Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided API group.
func Register(api *echo.Group, h *Handler) {
	g := api.Group("/inventory")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/low-stock", h.lowStock)
	g.PATCH("/:id/stock", h.updateStock)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "inventory.list")
	defer span.End()

	items, err := h.svc.List(ctx, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(items).WithMeta("count", len(items)).Build()
}

func (h *Handler) lowStock(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "inventory.lowStock")
	defer span.End()

	items, err := h.svc.GetLowStock(ctx, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(items).WithMeta("count", len(items)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.InventoryForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "inventory.create")
	defer span.End()

	item, err := h.svc.Create(ctx, form, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(item).Build()
}

func (h *Handler) updateStock(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.StockUpdate
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}
	if form.CurrentStock == nil {
		return b.WithError(errorbank.Validation("current_stock is required",
			errorbank.WithDetail("field", "current_stock"))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "inventory.updateStock", trace.WithAttributes(
		attribute.String("inventory.id", c.Param("id")),
		attribute.Int64("inventory.stock", *form.CurrentStock),
	))
	defer span.End()

	item, err := h.svc.UpdateStock(ctx, c.Param("id"), *form.CurrentStock, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(item).Build()
}
