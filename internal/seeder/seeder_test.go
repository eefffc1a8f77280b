package seeder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/storage/memory"
	"github.com/furfield/procurement/pkg/errorbank"
)

func newSeeder(t *testing.T) (*Seeder, *memory.Store, storage.Handle) {
	t.Helper()
	store := memory.NewStore()
	h := memory.NewHandle(store, storage.Settings{
		ServiceName: "ff-purc-test",
		StorageKey:  "ff-purc-test",
		Session:     cache.NewLocal(time.Minute),
	})
	cfg := config.Config{Procurement: config.Procurement{
		Currency: "USD",
		DefaultAddress: config.Address{
			Street: "123 Veterinary St", City: "Anytown", State: "ST", Zip: "12345", Country: "US",
		},
	}}
	return New(Params{Storage: storage.Static(h), Config: cfg}), store, h
}

func TestSeeder_Run(t *testing.T) {
	ctx := context.Background()
	s, _, h := newSeeder(t)

	res, err := s.Run(ctx, "mock-hospital-id")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Suppliers)
	assert.Equal(t, 2, res.Orders)
	assert.Equal(t, 3, res.Inventory)

	orders, err := h.PurchaseOrders().Select(ctx, storage.Where(storage.Tenant("mock-hospital-id")).OrderBy("po_number", false))
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "PO-202410001", orders[0].PONumber)
	assert.Equal(t, "1250", orders[0].Subtotal.String())
	assert.Equal(t, "100", orders[0].TaxAmount.String())
	assert.Equal(t, "1400", orders[0].TotalAmount.String())
	assert.Equal(t, "Anytown", orders[0].ShippingAddress.City)

	assert.Equal(t, "PO-202410002", orders[1].PONumber)
	assert.Equal(t, "943", orders[1].TotalAmount.String())

	items, err := h.PurchaseOrderItems().Select(ctx, storage.Where(storage.Eq("purchase_order_id", orders[0].ID)))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	inventory, err := h.Inventory().Select(ctx, storage.Where(storage.Tenant("mock-hospital-id")))
	require.NoError(t, err)
	for _, item := range inventory {
		assert.LessOrEqual(t, item.CurrentStock, item.MinimumStock, item.Name)
	}

	activities, err := h.Activities().Select(ctx, storage.Where(storage.Tenant("mock-hospital-id")))
	require.NoError(t, err)
	assert.Len(t, activities, 5)
}

func TestSeeder_RunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _, h := newSeeder(t)

	_, err := s.Run(ctx, "h-1")
	require.NoError(t, err)

	res, err := s.Run(ctx, "h-1")
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	suppliers, err := h.Suppliers().Select(ctx, storage.Where(storage.Tenant("h-1")))
	require.NoError(t, err)
	assert.Len(t, suppliers, 3)

	// Another tenant gets its own copies.
	res, err = s.Run(ctx, "h-2")
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	other, err := h.Suppliers().Select(ctx, storage.Where(storage.Tenant("h-2")))
	require.NoError(t, err)
	require.Len(t, other, 3)
	assert.NotEqual(t, suppliers[0].ID, other[0].ID)
}

func TestSeeder_RunRollsBack(t *testing.T) {
	ctx := context.Background()
	s, store, h := newSeeder(t)

	store.FailWith(func(op memory.Operation) error {
		if op.Table == "inventory_items" && op.Kind == "insert" {
			return errors.New("disk full")
		}
		return nil
	})

	_, err := s.Run(ctx, "h-1")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindStorage))

	store.FailWith(nil)
	suppliers, err := h.Suppliers().Select(ctx, storage.Where(storage.Tenant("h-1")))
	require.NoError(t, err)
	assert.Empty(t, suppliers)
}

func TestSeeder_RunRequiresHospital(t *testing.T) {
	s, _, _ := newSeeder(t)

	_, err := s.Run(context.Background(), "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))
}

func TestFixtureID_Stable(t *testing.T) {
	assert.Equal(t, fixtureID("h-1", "supplier", "vetmed"), fixtureID("h-1", "supplier", "vetmed"))
	assert.NotEqual(t, fixtureID("h-1", "supplier", "vetmed"), fixtureID("h-2", "supplier", "vetmed"))
}
