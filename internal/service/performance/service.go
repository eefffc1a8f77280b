package performance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/tenant"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/furfield/procurement/service/performance")

const entityName = "vendor_performance"

// Service records periodic supplier evaluations.
type Service struct {
	storage   storage.Provider
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Storage   storage.Provider
	Validator *validation.Validator
	Logger    *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		storage:   p.Storage,
		validator: p.Validator,
		logger:    logger.Named("performance"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record stores an evaluation of an existing supplier. The overall score is
// the mean of the four category scores.
func (s *Service) Record(ctx context.Context, supplierID string, form dto.PerformanceForm, hospitalID, evaluatorID string) (*entity.VendorPerformance, error) {
	ctx, span := serviceTracer.Start(ctx, "PerformanceService.Record", trace.WithAttributes(
		attribute.String("supplier.id", supplierID),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(form, entityName); err != nil {
		return nil, err
	}
	if evaluatorID == "" {
		evaluatorID = "system"
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	if _, found, err := storage.First(ctx, h.Suppliers(), storage.Tenant(hospitalID), storage.Eq("id", supplierID)); err != nil {
		return nil, s.fail(span, err, "failed to resolve supplier", "", hospitalID)
	} else if !found {
		return nil, errorbank.InvalidReference("supplier does not exist",
			errorbank.WithEntity("supplier", supplierID, hospitalID))
	}

	record := &entity.VendorPerformance{
		ID:                 uuid.NewString(),
		SupplierID:         supplierID,
		HospitalID:         hospitalID,
		PeriodStart:        form.PeriodStart,
		PeriodEnd:          form.PeriodEnd,
		DeliveryScore:      form.DeliveryScore,
		QualityScore:       form.QualityScore,
		PricingScore:       form.PricingScore,
		CommunicationScore: form.CommunicationScore,
		OverallScore:       entity.OverallOf(form.DeliveryScore, form.QualityScore, form.PricingScore, form.CommunicationScore),
		TotalOrders:        form.TotalOrders,
		OnTimeDeliveries:   form.OnTimeDeliveries,
		QualityIssues:      form.QualityIssues,
		Notes:              form.Notes,
		EvaluatedBy:        evaluatorID,
		CreatedAt:          s.now(),
	}
	if err := h.VendorPerformance().Insert(ctx, record); err != nil {
		return nil, s.fail(span, err, "failed to record vendor performance", record.ID, hospitalID)
	}

	s.logger.Info("vendor performance recorded",
		zap.String("supplier_id", supplierID),
		zap.String("hospital_id", hospitalID),
		zap.String("overall_score", record.OverallScore.StringFixed(1)),
	)
	return record, nil
}

// ListBySupplier returns a supplier's evaluations, latest period first.
func (s *Service) ListBySupplier(ctx context.Context, supplierID, hospitalID string) ([]entity.VendorPerformance, error) {
	ctx, span := serviceTracer.Start(ctx, "PerformanceService.ListBySupplier", trace.WithAttributes(
		attribute.String("supplier.id", supplierID),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := h.VendorPerformance().Select(ctx, storage.Where(
		storage.Tenant(hospitalID),
		storage.Eq("supplier_id", supplierID),
	).OrderBy("period_end", true))
	if err != nil {
		return nil, s.fail(span, err, "failed to list vendor performance", "", hospitalID)
	}
	return rows, nil
}

func (s *Service) fail(span trace.Span, err error, message, id, hospitalID string) error {
	switch errorbank.From(err).Kind() {
	case errorbank.KindNotFound, errorbank.KindValidation, errorbank.KindInvalidReference:
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return storage.Fail(err, message, errorbank.WithEntity(entityName, id, hospitalID))
}
