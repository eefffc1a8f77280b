package rfq

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/presentation/http/response"
	service "github.com/furfield/procurement/internal/service/rfq"
	"github.com/furfield/procurement/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/furfield/procurement/transport/http/rfq")

// Handler exposes request-for-quote endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an RFQ Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided API group.
func Register(api *echo.Group, h *Handler) {
	g := api.Group("/rfqs")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id/status", h.updateStatus)
	g.GET("/:id/quotes", h.listQuotes)
	g.POST("/:id/quotes", h.submitQuote)
	g.POST("/:id/quotes/:quoteId/accept", h.acceptQuote)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.list")
	defer span.End()

	rows, err := h.svc.List(ctx, id.HospitalID)
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

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.get", rfqAttr(c))
	defer span.End()

	rfq, err := h.svc.Get(ctx, c.Param("id"), id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(rfq).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.RFQForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.create", trace.WithAttributes(
		attribute.Int("rfq.suppliers", len(form.SupplierIDs)),
	))
	defer span.End()

	rfq, err := h.svc.Create(ctx, form, id.HospitalID, id.Actor())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(rfq).Build()
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

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.updateStatus", rfqAttr(c))
	defer span.End()

	rfq, err := h.svc.UpdateStatus(ctx, c.Param("id"), entity.RFQStatus(form.Status), id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(rfq).Build()
}

func (h *Handler) listQuotes(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.listQuotes", rfqAttr(c))
	defer span.End()

	quotes, err := h.svc.ListQuotes(ctx, c.Param("id"), id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(quotes).WithMeta("count", len(quotes)).Build()
}

func (h *Handler) submitQuote(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var form dto.QuoteForm
	if err := request.Bind(c, &form); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.submitQuote", rfqAttr(c))
	defer span.End()

	quote, err := h.svc.SubmitQuote(ctx, c.Param("id"), form, id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(quote).Build()
}

func (h *Handler) acceptQuote(c echo.Context) error {
	b := response.New(c)
	id, err := request.Identity(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "rfqs.acceptQuote", rfqAttr(c),
		trace.WithAttributes(attribute.String("quote.id", c.Param("quoteId"))))
	defer span.End()

	quote, err := h.svc.AcceptQuote(ctx, c.Param("id"), c.Param("quoteId"), id.HospitalID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(quote).Build()
}

func rfqAttr(c echo.Context) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("rfq.id", c.Param("id")))
}
