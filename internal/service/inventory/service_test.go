package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/storage/memory"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/pkg/errorbank"
)

func newTestService(t *testing.T) (*Service, *memory.Handle) {
	t.Helper()
	h := memory.NewHandle(memory.NewStore(), storage.Settings{ServiceName: "ff-purc-test"})
	svc := NewService(Params{Storage: storage.Static(h), Validator: validation.New()})
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }
	return svc, h
}

func seed(t *testing.T, h *memory.Handle, items ...entity.InventoryItem) {
	t.Helper()
	for i := range items {
		require.NoError(t, h.Inventory().Insert(context.Background(), &items[i]))
	}
}

func TestService_GetLowStock(t *testing.T) {
	svc, h := newTestService(t)
	seed(t, h,
		entity.InventoryItem{ID: "below", HospitalID: "h-1", Name: "Amoxicillin", CurrentStock: 3, MinimumStock: 10, Status: entity.InventoryStatusActive},
		entity.InventoryItem{ID: "boundary", HospitalID: "h-1", Name: "Bandages", CurrentStock: 10, MinimumStock: 10, Status: entity.InventoryStatusActive},
		entity.InventoryItem{ID: "above", HospitalID: "h-1", Name: "Catheters", CurrentStock: 11, MinimumStock: 10, Status: entity.InventoryStatusActive},
		entity.InventoryItem{ID: "discontinued", HospitalID: "h-1", Name: "Dressings", CurrentStock: 0, MinimumStock: 5, Status: entity.InventoryStatusDiscontinued},
		entity.InventoryItem{ID: "out", HospitalID: "h-1", Name: "Elastic wrap", CurrentStock: 0, MinimumStock: 5, Status: entity.InventoryStatusOutOfStock},
		entity.InventoryItem{ID: "other-tenant", HospitalID: "h-2", Name: "Forceps", CurrentStock: 0, MinimumStock: 5, Status: entity.InventoryStatusActive},
	)

	low, err := svc.GetLowStock(context.Background(), "h-1")
	require.NoError(t, err)

	ids := make([]string, 0, len(low))
	for _, item := range low {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"below", "boundary"}, ids)

	all, err := svc.List(context.Background(), "h-1")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestService_UpdateStock(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()
	seed(t, h, entity.InventoryItem{ID: "gauze", HospitalID: "h-1", Name: "Gauze", CurrentStock: 12, MinimumStock: 5, Status: entity.InventoryStatusActive})

	_, err := svc.UpdateStock(ctx, "gauze", -1, "h-1")
	require.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	item, found, err := storage.First(ctx, h.Inventory(), storage.Eq("id", "gauze"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(12), item.CurrentStock)

	updated, err := svc.UpdateStock(ctx, "gauze", 4, "h-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated.CurrentStock)
	assert.True(t, updated.IsLowStock())

	_, err = svc.UpdateStock(ctx, "gauze", 4, "h-2")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	_, err = svc.UpdateStock(ctx, "missing", 0, "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestService_Create(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()
	require.NoError(t, h.Suppliers().Insert(ctx, &entity.Supplier{ID: "s-1", HospitalID: "h-1", Name: "MedSupply"}))

	form := dto.InventoryForm{
		Name: "Syringes", Category: "medical_supplies", CurrentStock: 40, MinimumStock: 20, MaximumStock: 200,
		UnitOfMeasure: "box", UnitCost: decimal.RequireFromString("12.50"), Location: "Store A", SupplierID: "s-1",
	}
	item, err := svc.Create(ctx, form, "h-1")
	require.NoError(t, err)
	assert.Equal(t, entity.InventoryStatusActive, item.Status)
	assert.True(t, item.UnitCost.Equal(form.UnitCost))

	bad := form
	bad.MaximumStock = 10
	_, err = svc.Create(ctx, bad, "h-1")
	require.True(t, errorbank.IsKind(err, errorbank.KindValidation))
	fields := errorbank.From(err).Details()["fields"].([]validation.FieldError)
	require.Len(t, fields, 1)
	assert.Equal(t, "maximum_stock", fields[0].Field)

	negative := form
	negative.CurrentStock = -3
	_, err = svc.Create(ctx, negative, "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	subCent := form
	subCent.UnitCost = decimal.RequireFromString("12.505")
	_, err = svc.Create(ctx, subCent, "h-1")
	require.True(t, errorbank.IsKind(err, errorbank.KindValidation))
	fields = errorbank.From(err).Details()["fields"].([]validation.FieldError)
	require.Len(t, fields, 1)
	assert.Equal(t, "unit_cost", fields[0].Field)

	orphan := form
	orphan.SupplierID = "s-404"
	_, err = svc.Create(ctx, orphan, "h-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidReference))
}
