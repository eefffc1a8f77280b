package purchaseorder

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/presentation/http/response"
	service "github.com/furfield/procurement/internal/service/purchaseorder"
	"github.com/furfield/procurement/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/furfield/procurement/transport/http/purchaseorder")

// Handler exposes purchase order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a purchase order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided API group.
func Register(api *echo.Group, h *Handler) {
	g := api.Group("/purchase-orders")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.updateDetails)
	g.DELETE("/:id", h.delete)
	g.PATCH("/:id/status", h.updateStatus)
	g.POST("/:id/receipts", h.receive)
	g.POST("/:id/approve", h.approve)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchase_orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(orders).WithMeta("count", len(orders)).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchase_orders.get", orderAttr(c))
	defer span.End()

	order, err := h.svc.Get(ctx, c.Param("id"), id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.PurchaseOrderForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchase_orders.create", trace.WithAttributes(
		attribute.String("supplier.id", form.SupplierID),
		attribute.Int("purchase_order.items", len(form.Items)),
	))
	defer span.End()

	order, err := h.svc.Create(ctx, form, id.HospitalID, id.Actor())
	if err != nil {
		return b.WithError(err).Build()
	}
	span.SetAttributes(attribute.String("purchase_order.number", order.PONumber))
	return b.WithStatus(http.StatusCreated).WithData(order).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.StatusUpdate
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchase_orders.updateStatus", orderAttr(c))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, c.Param("id"), entity.PurchaseOrderStatus(form.Status), id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) receive(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.ReceiptForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchase_orders.receive", orderAttr(c))
	defer span.End()

	order, err := h.svc.ReceiveItems(ctx, c.Param("id"), form, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

// approve records the caller as approver unless the body names one.
func (h *Handler) approve(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.ApprovalForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}
	if form.ApproverID == "" {
		form.ApproverID = id.UserID
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchase_orders.approve", orderAttr(c))
	defer span.End()

	order, err := h.svc.Approve(ctx, c.Param("id"), form.ApproverID, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) updateDetails(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.DetailsForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchase_orders.updateDetails", orderAttr(c))
	defer span.End()

	order, err := h.svc.UpdateDetails(ctx, c.Param("id"), form, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchase_orders.delete", orderAttr(c))
	defer span.End()

	if err := h.svc.Delete(ctx, c.Param("id"), id.HospitalID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"id": c.Param("id")}).Build()
}

func orderAttr(c echo.Context) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("purchase_order.id", c.Param("id")))
}
