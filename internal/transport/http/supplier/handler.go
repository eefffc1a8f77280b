package supplier

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/presentation/http/response"
	service "github.com/furfield/procurement/internal/service/supplier"
	"github.com/furfield/procurement/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/furfield/procurement/transport/http/supplier")

// Handler exposes supplier endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a supplier Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided API group.
func Register(api *echo.Group, h *Handler) {
	g := api.Group("/suppliers")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

// list filters by ?type= when present; typed listings only return active
// suppliers.
func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "suppliers.list")
	defer span.End()

	var rows []entity.Supplier
	if kind := c.QueryParam("type"); kind != "" {
		span.SetAttributes(attribute.String("supplier.type", kind))
		rows, err = h.svc.ListByType(ctx, entity.SupplierType(kind), id.HospitalID)
	} else {
		rows, err = h.svc.List(ctx, id.HospitalID)
	}
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(rows).WithMeta("count", len(rows)).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "suppliers.get", trace.WithAttributes(attribute.String("supplier.id", c.Param("id"))))
	defer span.End()

	supplier, err := h.svc.Get(ctx, c.Param("id"), id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(supplier).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.SupplierForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "suppliers.create")
	defer span.End()

	supplier, err := h.svc.Create(ctx, form, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(supplier).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var patch dto.SupplierPatch
	if err := request.Bind(c, &patch); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "suppliers.update", trace.WithAttributes(attribute.String("supplier.id", c.Param("id"))))
	defer span.End()

	supplier, err := h.svc.Update(ctx, c.Param("id"), patch, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(supplier).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "suppliers.delete", trace.WithAttributes(attribute.String("supplier.id", c.Param("id"))))
	defer span.End()

	if err := h.svc.Delete(ctx, c.Param("id"), id.HospitalID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"id": c.Param("id")}).Build()
}
