package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/event"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/tenant"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/furfield/procurement/service/supplier")

const entityName = "supplier"

// Service manages a hospital's suppliers.
type Service struct {
	storage   storage.Provider
	validator *validation.Validator
	events    *event.Recorder
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Storage   storage.Provider
	Validator *validation.Validator
	Events    *event.Recorder
	Config    config.Config
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
		events:    p.Events,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    logger.Named("supplier"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns every supplier of the hospital ordered by name.
func (s *Service) List(ctx context.Context, hospitalID string) ([]entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.List", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := h.Suppliers().Select(ctx, storage.Where(storage.Tenant(hospitalID)).OrderBy("name", false))
	if err != nil {
		return nil, s.fail(span, err, "failed to list suppliers", "", hospitalID)
	}
	return rows, nil
}

// ListByType returns the active suppliers of one type.
func (s *Service) ListByType(ctx context.Context, supplierType entity.SupplierType, hospitalID string) ([]entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.ListByType", trace.WithAttributes(
		attribute.String("hospital.id", hospitalID),
		attribute.String("supplier.type", string(supplierType)),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if !supplierType.IsValid() {
		return nil, errorbank.Validation("unknown supplier type",
			errorbank.WithEntity(entityName, "", hospitalID),
			errorbank.WithDetail("supplier_type", string(supplierType)))
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := h.Suppliers().Select(ctx, storage.Where(
		storage.Tenant(hospitalID),
		storage.Eq("supplier_type", string(supplierType)),
		storage.Eq("status", string(entity.SupplierStatusActive)),
	).OrderBy("name", false))
	if err != nil {
		return nil, s.fail(span, err, "failed to list suppliers", "", hospitalID)
	}
	return rows, nil
}

// Get returns one supplier, consulting the handle's session cache first.
func (s *Service) Get(ctx context.Context, id, hospitalID string) (*entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.Get", trace.WithAttributes(
		attribute.String("supplier.id", id),
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

	if sup, err := s.getFromCache(ctx, h.Session(), id, hospitalID); err == nil {
		return sup, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("supplier cache read failed", zap.String("id", id), zap.Error(err))
	}

	sup, found, err := storage.First(ctx, h.Suppliers(), storage.Tenant(hospitalID), storage.Eq("id", id))
	if err != nil {
		return nil, s.fail(span, err, "failed to load supplier", id, hospitalID)
	}
	if !found {
		return nil, notFound(id, hospitalID)
	}

	if err := s.storeInCache(ctx, h.Session(), sup); err != nil {
		s.logger.Warn("supplier cache write failed", zap.String("id", id), zap.Error(err))
	}
	return sup, nil
}

// Create validates the form and stores a new active supplier.
func (s *Service) Create(ctx context.Context, form dto.SupplierForm, hospitalID string) (*entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.Create", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(form, entityName); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sup := &entity.Supplier{
		ID:            uuid.NewString(),
		HospitalID:    hospitalID,
		Name:          form.Name,
		Email:         form.Email,
		Phone:         form.Phone,
		Address:       form.Address.Entity(),
		ContactPerson: form.ContactPerson,
		TaxID:         form.TaxID,
		PaymentTerms:  entity.PaymentTerms(form.PaymentTerms),
		SupplierType:  entity.SupplierType(form.SupplierType),
		Status:        entity.SupplierStatusActive,
		Notes:         form.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var act entity.Activity
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Suppliers().Insert(ctx, sup); err != nil {
			return err
		}
		var err error
		act, err = s.events.Record(ctx, tx, hospitalID, entity.ActivitySupplierAdded, sup.ID,
			"New supplier added: "+sup.Name, now)
		return err
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to create supplier", sup.ID, hospitalID)
	}

	s.events.Publish(ctx, h.Session(), act)
	s.logger.Info("supplier created", zap.String("id", sup.ID), zap.String("hospital_id", hospitalID))
	return sup, nil
}

// Update merges the non-nil fields of patch into an existing supplier.
func (s *Service) Update(ctx context.Context, id string, patch dto.SupplierPatch, hospitalID string) (*entity.Supplier, error) {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.Update", trace.WithAttributes(
		attribute.String("supplier.id", id),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(patch, entityName); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var updated *entity.Supplier
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		sup, found, err := storage.First(ctx, tx.Suppliers(), storage.Tenant(hospitalID), storage.Eq("id", id))
		if err != nil {
			return err
		}
		if !found {
			return notFound(id, hospitalID)
		}
		apply(sup, patch)
		sup.UpdatedAt = s.now()
		if _, err := tx.Suppliers().Update(ctx, sup, storage.Tenant(hospitalID), storage.Eq("id", id)); err != nil {
			return err
		}
		updated = sup
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update supplier", id, hospitalID)
	}

	s.evict(ctx, h.Session(), id, hospitalID)
	s.events.Invalidate(ctx, h.Session(), hospitalID)
	return updated, nil
}

// Delete removes a supplier. Deleting an absent supplier is not an error.
// Historical orders keep their supplier reference.
func (s *Service) Delete(ctx context.Context, id, hospitalID string) error {
	ctx, span := serviceTracer.Start(ctx, "SupplierService.Delete", trace.WithAttributes(
		attribute.String("supplier.id", id),
		attribute.String("hospital.id", hospitalID),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return err
	}
	n, err := h.Suppliers().Delete(ctx, storage.Tenant(hospitalID), storage.Eq("id", id))
	if err != nil {
		return s.fail(span, err, "failed to delete supplier", id, hospitalID)
	}
	s.evict(ctx, h.Session(), id, hospitalID)
	s.events.Invalidate(ctx, h.Session(), hospitalID)
	if n > 0 {
		s.logger.Info("supplier deleted", zap.String("id", id), zap.String("hospital_id", hospitalID))
	}
	return nil
}

func apply(sup *entity.Supplier, patch dto.SupplierPatch) {
	if patch.Name != nil {
		sup.Name = *patch.Name
	}
	if patch.Email != nil {
		sup.Email = *patch.Email
	}
	if patch.Phone != nil {
		sup.Phone = *patch.Phone
	}
	if patch.Address != nil {
		sup.Address = patch.Address.Entity()
	}
	if patch.ContactPerson != nil {
		sup.ContactPerson = *patch.ContactPerson
	}
	if patch.TaxID != nil {
		sup.TaxID = *patch.TaxID
	}
	if patch.PaymentTerms != nil {
		sup.PaymentTerms = entity.PaymentTerms(*patch.PaymentTerms)
	}
	if patch.SupplierType != nil {
		sup.SupplierType = entity.SupplierType(*patch.SupplierType)
	}
	if patch.Status != nil {
		sup.Status = entity.SupplierStatus(*patch.Status)
	}
	if patch.Notes != nil {
		sup.Notes = *patch.Notes
	}
}

func notFound(id, hospitalID string) error {
	return errorbank.NotFound("supplier not found", errorbank.WithEntity(entityName, id, hospitalID))
}

func (s *Service) fail(span trace.Span, err error, message, id, hospitalID string) error {
	if errorbank.IsKind(err, errorbank.KindNotFound) || errorbank.IsKind(err, errorbank.KindValidation) {
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return storage.Fail(err, message, errorbank.WithEntity(entityName, id, hospitalID))
}

func cacheKey(id, hospitalID string) string {
	return "suppliers:" + hospitalID + ":" + id
}

func (s *Service) getFromCache(ctx context.Context, session cache.Store, id, hospitalID string) (*entity.Supplier, error) {
	if session == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := session.Get(ctx, cacheKey(id, hospitalID))
	if err != nil {
		return nil, err
	}
	var sup entity.Supplier
	if err := json.Unmarshal(bytes, &sup); err != nil {
		return nil, err
	}
	return &sup, nil
}

func (s *Service) storeInCache(ctx context.Context, session cache.Store, sup *entity.Supplier) error {
	if session == nil || sup == nil {
		return nil
	}
	bytes, err := json.Marshal(sup)
	if err != nil {
		return err
	}
	return session.Set(ctx, cacheKey(sup.ID, sup.HospitalID), bytes, s.cacheTTL)
}

func (s *Service) evict(ctx context.Context, session cache.Store, id, hospitalID string) {
	if session == nil {
		return
	}
	if err := session.Delete(ctx, cacheKey(id, hospitalID)); err != nil {
		s.logger.Warn("supplier cache eviction failed", zap.String("id", id), zap.Error(err))
	}
}
