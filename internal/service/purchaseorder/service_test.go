package purchaseorder

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/dto"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/event"
	"github.com/furfield/procurement/internal/sequence"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/storage/memory"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/pkg/errorbank"
)

var fixedNow = time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc   *Service
	h     *memory.Handle
	store *memory.Store
}

func newFixture(t *testing.T) fixture {
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
	svc := NewService(Params{
		Storage:   storage.Static(h),
		Validator: validation.New(),
		Events:    event.New(nil, nil),
		Sequencer: sequence.New(),
		Config:    cfg,
	})
	svc.now = func() time.Time { return fixedNow }
	return fixture{svc: svc, h: h, store: store}
}

func (f fixture) supplier(t *testing.T, id, hospitalID string) {
	t.Helper()
	require.NoError(t, f.h.Suppliers().Insert(context.Background(), &entity.Supplier{
		ID: id, HospitalID: hospitalID, Name: "Supplier " + id, Status: entity.SupplierStatusActive,
	}))
}

func h1Form() dto.PurchaseOrderForm {
	return dto.PurchaseOrderForm{
		SupplierID:   "S1",
		Priority:     "medium",
		ShippingCost: money("3.00"),
		Items: []dto.PurchaseOrderItemForm{
			{ItemName: "Gauze", Category: "medical_supplies", QuantityOrdered: 2, UnitOfMeasure: "box", UnitPrice: money("10.00")},
			{ItemName: "Tape", Category: "medical_supplies", QuantityOrdered: 1, UnitOfMeasure: "roll", UnitPrice: money("5.00")},
		},
	}
}

func TestService_CreateScenarioH1(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()

	order, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(money("25.00")), order.Subtotal.String())
	assert.True(t, order.TaxAmount.Equal(money("2.00")), order.TaxAmount.String())
	assert.True(t, order.ShippingCost.Equal(money("3.00")))
	assert.True(t, order.TotalAmount.Equal(money("30.00")), order.TotalAmount.String())
	assert.Equal(t, entity.POStatusDraft, order.Status)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, "u-1", order.CreatedBy)
	assert.Equal(t, "Anytown", order.ShippingAddress.City)
	assert.Equal(t, "PO-202610001", order.PONumber)
	assert.Regexp(t, regexp.MustCompile(fmt.Sprintf(`^PO-%04d%02d\d{3,}$`, fixedNow.Year(), fixedNow.Month())), order.PONumber)

	stored, err := f.svc.Get(ctx, order.ID, "H1")
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.True(t, stored.Items[0].TotalPrice.Equal(money("20.00")))
	assert.True(t, stored.TotalsConsistent())

	acts, err := f.h.Activities().Select(ctx, storage.Where(storage.Tenant("H1")))
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, entity.ActivityOrderCreated, acts[0].Type)
}

func TestService_CreateTotalsProperty(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")

	lines := []struct {
		qty   int64
		price string
	}{{3, "19.99"}, {7, "0.35"}, {1, "1234.56"}, {12, "2.49"}, {8, "0.10"}}

	form := h1Form()
	form.ShippingCost = money("12.50")
	form.Items = nil
	want := decimal.Zero
	for i, l := range lines {
		form.Items = append(form.Items, dto.PurchaseOrderItemForm{
			ItemName: fmt.Sprintf("line %d", i), Category: "office", QuantityOrdered: l.qty,
			UnitOfMeasure: "each", UnitPrice: money(l.price),
		})
		want = want.Add(money(l.price).Mul(decimal.NewFromInt(l.qty)))
	}

	order, err := f.svc.Create(context.Background(), form, "H1", "u-1")
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(want.Round(2)))
	assert.True(t, order.TaxAmount.Equal(want.Mul(money("0.08")).Round(2)))
	assert.True(t, order.TotalAmount.Equal(order.Subtotal.Add(order.TaxAmount).Add(money("12.50"))))
	for i, item := range order.Items {
		assert.True(t, item.UnitPrice.Equal(money(lines[i].price)), "unit price stored as submitted")
	}
}

func TestService_CreateRejectsSubCentPrices(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()

	for _, price := range []string{"0.125", "0.333", "19.999"} {
		t.Run(price, func(t *testing.T) {
			form := h1Form()
			form.Items[0].QuantityOrdered = 8
			form.Items[0].UnitPrice = money(price)

			_, err := f.svc.Create(ctx, form, "H1", "u-1")
			require.True(t, errorbank.IsKind(err, errorbank.KindValidation), "%v", err)
			fields := errorbank.From(err).Details()["fields"].([]validation.FieldError)
			require.Len(t, fields, 1)
			assert.Equal(t, "items[0].unit_price", fields[0].Field)
		})
	}

	orders, err := f.h.PurchaseOrders().Select(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, h1Form(), "H2", "u-1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidReference))

	tests := []struct {
		name   string
		mutate func(*dto.PurchaseOrderForm)
	}{
		{"no items", func(f *dto.PurchaseOrderForm) { f.Items = nil }},
		{"zero quantity", func(f *dto.PurchaseOrderForm) { f.Items[0].QuantityOrdered = 0 }},
		{"negative price", func(f *dto.PurchaseOrderForm) { f.Items[1].UnitPrice = money("-1") }},
		{"negative shipping", func(f *dto.PurchaseOrderForm) { f.ShippingCost = money("-0.01") }},
		{"sub-cent shipping", func(f *dto.PurchaseOrderForm) { f.ShippingCost = money("3.005") }},
		{"unknown priority", func(f *dto.PurchaseOrderForm) { f.Priority = "asap" }},
		{"unknown category", func(f *dto.PurchaseOrderForm) { f.Items[0].Category = "toys" }},
		{"missing supplier", func(f *dto.PurchaseOrderForm) { f.SupplierID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := h1Form()
			tt.mutate(&form)
			_, err := f.svc.Create(ctx, form, "H1", "u-1")
			assert.True(t, errorbank.IsKind(err, errorbank.KindValidation), "%v", err)
		})
	}

	orders, err := f.h.PurchaseOrders().Select(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestService_CreateRollsBackOnItemFailure(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()
	f.store.FailWith(func(op memory.Operation) error {
		if op.Table == "purchase_order_items" && op.Kind == "insert" {
			return errors.New("connection reset")
		}
		return nil
	})

	_, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.True(t, errorbank.IsKind(err, errorbank.KindStorage))

	f.store.FailWith(nil)
	orders, err := f.h.PurchaseOrders().Select(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	acts, err := f.h.Activities().Select(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestService_ConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	const n = 25

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.svc.Create(context.Background(), h1Form(), "H1", "u-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[order.PONumber] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, n)
}

func TestService_NumbersContinueAboveExisting(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()
	require.NoError(t, f.h.PurchaseOrders().Insert(ctx, &entity.PurchaseOrder{
		ID: "legacy", HospitalID: "H1", PONumber: "PO-202609041", Status: entity.POStatusCompleted,
	}))

	order, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "PO-202610042", order.PONumber)

	require.NoError(t, f.svc.Delete(ctx, order.ID, "H1"))
	next, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "PO-202610043", next.PONumber)
}

func TestService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()

	order, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)

	later := fixedNow.Add(2 * time.Hour)
	f.svc.now = func() time.Time { return later }

	sent, err := f.svc.UpdateStatus(ctx, order.ID, entity.POStatusSent, "H1")
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusSent, sent.Status)
	assert.Equal(t, later, sent.UpdatedAt)

	_, err = f.svc.UpdateStatus(ctx, order.ID, entity.POStatusSent, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, order.ID, entity.POStatusConfirmed, "H1")
	require.NoError(t, err)
	done, err := f.svc.UpdateStatus(ctx, order.ID, entity.POStatusCompleted, "H1")
	require.NoError(t, err)
	require.NotNil(t, done.ActualDeliveryDate)
	assert.Equal(t, later, *done.ActualDeliveryDate)
	for _, item := range done.Items {
		assert.Equal(t, item.QuantityOrdered, item.QuantityReceived)
	}

	for _, target := range []entity.PurchaseOrderStatus{
		entity.POStatusDraft, entity.POStatusSent, entity.POStatusConfirmed,
		entity.POStatusPartiallyReceived, entity.POStatusCancelled,
	} {
		_, err := f.svc.UpdateStatus(ctx, order.ID, target, "H1")
		assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition), "completed -> %s", target)
	}

	_, err = f.svc.UpdateStatus(ctx, order.ID, "shipped", "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	_, err = f.svc.UpdateStatus(ctx, "missing", entity.POStatusSent, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	acts, err := f.h.Activities().Select(ctx, storage.Where(
		storage.Tenant("H1"), storage.Eq("type", string(entity.ActivityOrderStatusChanged))))
	require.NoError(t, err)
	assert.Len(t, acts, 3)
}

func TestService_ReceiveItems(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()

	order, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)
	gauze, tape := order.Items[0].ID, order.Items[1].ID

	_, err = f.svc.ReceiveItems(ctx, order.ID, dto.ReceiptForm{Receipts: []dto.ItemReceipt{{ItemID: gauze, Quantity: 1}}}, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, order.ID, entity.POStatusSent, "H1")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, order.ID, entity.POStatusConfirmed, "H1")
	require.NoError(t, err)

	partial, err := f.svc.ReceiveItems(ctx, order.ID, dto.ReceiptForm{Receipts: []dto.ItemReceipt{{ItemID: gauze, Quantity: 1}}}, "H1")
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusPartiallyReceived, partial.Status)
	assert.Nil(t, partial.ActualDeliveryDate)

	_, err = f.svc.ReceiveItems(ctx, order.ID, dto.ReceiptForm{Receipts: []dto.ItemReceipt{{ItemID: gauze, Quantity: 2}}}, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	_, err = f.svc.ReceiveItems(ctx, order.ID, dto.ReceiptForm{Receipts: []dto.ItemReceipt{{ItemID: "other", Quantity: 1}}}, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	_, err = f.svc.ReceiveItems(ctx, order.ID, dto.ReceiptForm{Receipts: []dto.ItemReceipt{{ItemID: gauze, Quantity: 0}}}, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	done, err := f.svc.ReceiveItems(ctx, order.ID, dto.ReceiptForm{Receipts: []dto.ItemReceipt{
		{ItemID: gauze, Quantity: 1}, {ItemID: tape, Quantity: 1},
	}}, "H1")
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusCompleted, done.Status)
	require.NotNil(t, done.ActualDeliveryDate)

	stored, err := f.svc.Get(ctx, order.ID, "H1")
	require.NoError(t, err)
	for _, item := range stored.Items {
		assert.Zero(t, item.Outstanding())
	}
}

func TestService_ApproveAndUpdateDetails(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()

	order, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, order.ID, "u-9", "H1")
	require.NoError(t, err)
	assert.Equal(t, "u-9", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	_, err = f.svc.Approve(ctx, order.ID, "", "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	shipping := money("10.00")
	urgent := "urgent"
	edited, err := f.svc.UpdateDetails(ctx, order.ID, dto.DetailsForm{ShippingCost: &shipping, Priority: &urgent}, "H1")
	require.NoError(t, err)
	assert.Equal(t, entity.PriorityUrgent, edited.Priority)
	assert.True(t, edited.TotalAmount.Equal(money("37.00")), edited.TotalAmount.String())

	negative := money("-5")
	_, err = f.svc.UpdateDetails(ctx, order.ID, dto.DetailsForm{ShippingCost: &negative}, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	_, err = f.svc.UpdateStatus(ctx, order.ID, entity.POStatusSent, "H1")
	require.NoError(t, err)
	_, err = f.svc.UpdateDetails(ctx, order.ID, dto.DetailsForm{ShippingCost: &shipping}, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, order.ID, entity.POStatusConfirmed, "H1")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, order.ID, "u-9", "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
}

func TestService_RejectsDriftedTotals(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	ctx := context.Background()

	order, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)

	stored, _, err := storage.First(ctx, f.h.PurchaseOrders(), storage.Eq("id", order.ID))
	require.NoError(t, err)
	stored.TotalAmount = money("99.99")
	_, err = f.h.PurchaseOrders().Update(ctx, stored, storage.Eq("id", order.ID))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, order.ID, entity.POStatusSent, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindValidation))

	again, err := f.svc.Get(ctx, order.ID, "H1")
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusDraft, again.Status)
}

func TestService_ListAndDelete(t *testing.T) {
	f := newFixture(t)
	f.supplier(t, "S1", "H1")
	f.supplier(t, "S1", "H2")
	ctx := context.Background()

	first, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)
	f.svc.now = func() time.Time { return fixedNow.Add(time.Minute) }
	second, err := f.svc.Create(ctx, h1Form(), "H1", "u-1")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, h1Form(), "H2", "u-2")
	require.NoError(t, err)

	orders, err := f.svc.List(ctx, "H1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Len(t, orders[1].Items, 2)

	_, err = f.svc.UpdateStatus(ctx, first.ID, entity.POStatusSent, "H1")
	require.NoError(t, err)
	err = f.svc.Delete(ctx, first.ID, "H1")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))

	require.NoError(t, f.svc.Delete(ctx, second.ID, "H1"))
	require.NoError(t, f.svc.Delete(ctx, second.ID, "H1"))
	items, err := f.h.PurchaseOrderItems().Select(ctx, storage.Where(storage.Eq("purchase_order_id", second.ID)))
	require.NoError(t, err)
	assert.Empty(t, items)
}
