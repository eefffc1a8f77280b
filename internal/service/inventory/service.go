package inventory

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

var serviceTracer = otel.Tracer("github.com/furfield/procurement/service/inventory")

const entityName = "inventory_item"

// Service tracks stock levels against their thresholds.
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
		logger:    logger.Named("inventory"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns every stock record of the hospital ordered by name.
func (s *Service) List(ctx context.Context, hospitalID string) ([]entity.InventoryItem, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.List", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := h.Inventory().Select(ctx, storage.Where(storage.Tenant(hospitalID)).OrderBy("name", false))
	if err != nil {
		return nil, s.fail(span, err, "failed to list inventory", "", hospitalID)
	}
	return rows, nil
}

// GetLowStock returns the active items at or below their minimum stock.
func (s *Service) GetLowStock(ctx context.Context, hospitalID string) ([]entity.InventoryItem, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.GetLowStock", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := h.Inventory().Select(ctx, storage.Where(
		storage.Tenant(hospitalID),
		storage.Eq("status", string(entity.InventoryStatusActive)),
	).OrderBy("name", false))
	if err != nil {
		return nil, s.fail(span, err, "failed to list low stock", "", hospitalID)
	}

	low := make([]entity.InventoryItem, 0, len(rows))
	for _, item := range rows {
		if item.IsLowStock() {
			low = append(low, item)
		}
	}
	span.SetAttributes(attribute.Int("inventory.low_stock", len(low)))
	return low, nil
}

// UpdateStock sets the on-hand quantity. Negative quantities are rejected
// and leave the record untouched.
func (s *Service) UpdateStock(ctx context.Context, id string, newStock int64, hospitalID string) (*entity.InventoryItem, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.UpdateStock", trace.WithAttributes(
		attribute.String("inventory.id", id),
		attribute.String("hospital.id", hospitalID),
		attribute.Int64("inventory.stock", newStock),
	))
	defer span.End()

	if err := tenant.Check(hospitalID); err != nil {
		return nil, err
	}
	if newStock < 0 {
		return nil, errorbank.Validation("stock cannot be negative",
			errorbank.WithEntity(entityName, id, hospitalID),
			errorbank.WithDetail("current_stock", newStock))
	}
	h, err := s.storage.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var item *entity.InventoryItem
	err = h.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var (
			found bool
			err   error
		)
		item, found, err = storage.First(ctx, tx.Inventory(), storage.Tenant(hospitalID), storage.Eq("id", id))
		if err != nil {
			return err
		}
		if !found {
			return errorbank.NotFound("inventory item not found", errorbank.WithEntity(entityName, id, hospitalID))
		}
		item.CurrentStock = newStock
		item.UpdatedAt = s.now()
		_, err = tx.Inventory().Update(ctx, item, storage.Tenant(hospitalID), storage.Eq("id", id))
		return err
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to update stock", id, hospitalID)
	}

	if item.IsLowStock() {
		s.logger.Info("inventory item at or below minimum stock",
			zap.String("id", item.ID),
			zap.String("hospital_id", hospitalID),
			zap.Int64("current_stock", item.CurrentStock),
			zap.Int64("minimum_stock", item.MinimumStock),
		)
	}
	return item, nil
}

// Create validates and stores a new stock record.
func (s *Service) Create(ctx context.Context, form dto.InventoryForm, hospitalID string) (*entity.InventoryItem, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.Create", trace.WithAttributes(attribute.String("hospital.id", hospitalID)))
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

	if form.SupplierID != "" {
		if _, found, err := storage.First(ctx, h.Suppliers(), storage.Tenant(hospitalID), storage.Eq("id", form.SupplierID)); err != nil {
			return nil, s.fail(span, err, "failed to resolve supplier", "", hospitalID)
		} else if !found {
			return nil, errorbank.InvalidReference("supplier does not exist",
				errorbank.WithEntity("supplier", form.SupplierID, hospitalID))
		}
	}

	status := entity.InventoryStatus(form.Status)
	if status == "" {
		status = entity.InventoryStatusActive
	}
	now := s.now()
	item := &entity.InventoryItem{
		ID:             uuid.NewString(),
		HospitalID:     hospitalID,
		Name:           form.Name,
		Description:    form.Description,
		ItemCode:       form.ItemCode,
		Category:       entity.ItemCategory(form.Category),
		CurrentStock:   form.CurrentStock,
		MinimumStock:   form.MinimumStock,
		MaximumStock:   form.MaximumStock,
		UnitOfMeasure:  form.UnitOfMeasure,
		UnitCost:       form.UnitCost,
		Location:       form.Location,
		ExpirationDate: form.ExpirationDate,
		LotNumber:      form.LotNumber,
		SupplierID:     form.SupplierID,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.Inventory().Insert(ctx, item); err != nil {
		return nil, s.fail(span, err, "failed to create inventory item", item.ID, hospitalID)
	}
	return item, nil
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
