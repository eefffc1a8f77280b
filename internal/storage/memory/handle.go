package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/storage"
)

// Factory builds handles that all share one Store, the way several remote
// clients share one database.
type Factory struct {
	store *Store
}

var _ storage.Factory = (*Factory)(nil)

// NewFactory returns a factory over store. A nil store gets a fresh one.
func NewFactory(store *Store) *Factory {
	if store == nil {
		store = NewStore()
	}
	return &Factory{store: store}
}

// Store exposes the shared tables, mainly for tests.
func (f *Factory) Store() *Store { return f.store }

func (f *Factory) Driver() string { return "memory" }

// Validate always succeeds; the memory driver has no remote coordinates.
func (f *Factory) Validate() error { return nil }

func (f *Factory) New(ctx context.Context, s storage.Settings) (storage.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newHandle(f.store, s), nil
}

// Handle is a storage.Handle over a Store.
type Handle struct {
	store    *Store
	settings storage.Settings
	closed   atomic.Bool
}

var _ storage.Handle = (*Handle)(nil)

func newHandle(store *Store, s storage.Settings) *Handle {
	if s.Session == nil {
		s.Session = cache.Noop()
	}
	return &Handle{store: store, settings: s}
}

// NewHandle builds a standalone handle, mainly for tests.
func NewHandle(store *Store, s storage.Settings) *Handle {
	return newHandle(store, s)
}

func (h *Handle) isClosed() bool { return h.closed.Load() }

func (h *Handle) Name() string       { return h.settings.ServiceName }
func (h *Handle) StorageKey() string { return h.settings.StorageKey }
func (h *Handle) Session() cache.Store {
	return h.settings.Session
}

func (h *Handle) Metadata() map[string]string {
	out := make(map[string]string, len(h.settings.Metadata))
	for k, v := range h.settings.Metadata {
		out[k] = v
	}
	return out
}

func (h *Handle) Suppliers() storage.Collection[entity.Supplier] {
	return collection[entity.Supplier]{spec: suppliersTable, store: h.store, handle: h}
}

func (h *Handle) PurchaseOrders() storage.Collection[entity.PurchaseOrder] {
	return collection[entity.PurchaseOrder]{spec: ordersTable, store: h.store, handle: h}
}

func (h *Handle) PurchaseOrderItems() storage.Collection[entity.PurchaseOrderItem] {
	return collection[entity.PurchaseOrderItem]{spec: orderItemsTable, store: h.store, handle: h}
}

func (h *Handle) Inventory() storage.Collection[entity.InventoryItem] {
	return collection[entity.InventoryItem]{spec: inventoryTable, store: h.store, handle: h}
}

func (h *Handle) RFQs() storage.Collection[entity.RequestForQuote] {
	return collection[entity.RequestForQuote]{spec: rfqsTable, store: h.store, handle: h}
}

func (h *Handle) Quotes() storage.Collection[entity.Quote] {
	return collection[entity.Quote]{spec: quotesTable, store: h.store, handle: h}
}

func (h *Handle) VendorPerformance() storage.Collection[entity.VendorPerformance] {
	return collection[entity.VendorPerformance]{spec: performanceTable, store: h.store, handle: h}
}

func (h *Handle) Activities() storage.Collection[entity.Activity] {
	return collection[entity.Activity]{spec: activitiesTable, store: h.store, handle: h}
}

// RunInTx runs fn against a working copy of every table and publishes the
// copy only when fn succeeds. Transactions are serialized with every other
// write on the store.
func (h *Handle) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if h.isClosed() {
		return storage.ErrClosed
	}
	return h.store.runInTx(ctx, func(st *state) error {
		return fn(ctx, txTables{store: h.store, handle: h, st: st})
	})
}

func (h *Handle) Ping(ctx context.Context) error {
	if h.isClosed() {
		return storage.ErrClosed
	}
	return ctx.Err()
}

func (h *Handle) Close() error {
	h.closed.Store(true)
	return nil
}

type txTables struct {
	store  *Store
	handle *Handle
	st     *state
}

func (t txTables) Suppliers() storage.Collection[entity.Supplier] {
	return collection[entity.Supplier]{spec: suppliersTable, store: t.store, handle: t.handle, tx: t.st}
}

func (t txTables) PurchaseOrders() storage.Collection[entity.PurchaseOrder] {
	return collection[entity.PurchaseOrder]{spec: ordersTable, store: t.store, handle: t.handle, tx: t.st}
}

func (t txTables) PurchaseOrderItems() storage.Collection[entity.PurchaseOrderItem] {
	return collection[entity.PurchaseOrderItem]{spec: orderItemsTable, store: t.store, handle: t.handle, tx: t.st}
}

func (t txTables) Inventory() storage.Collection[entity.InventoryItem] {
	return collection[entity.InventoryItem]{spec: inventoryTable, store: t.store, handle: t.handle, tx: t.st}
}

func (t txTables) RFQs() storage.Collection[entity.RequestForQuote] {
	return collection[entity.RequestForQuote]{spec: rfqsTable, store: t.store, handle: t.handle, tx: t.st}
}

func (t txTables) Quotes() storage.Collection[entity.Quote] {
	return collection[entity.Quote]{spec: quotesTable, store: t.store, handle: t.handle, tx: t.st}
}

func (t txTables) VendorPerformance() storage.Collection[entity.VendorPerformance] {
	return collection[entity.VendorPerformance]{spec: performanceTable, store: t.store, handle: t.handle, tx: t.st}
}

func (t txTables) Activities() storage.Collection[entity.Activity] {
	return collection[entity.Activity]{spec: activitiesTable, store: t.store, handle: t.handle, tx: t.st}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
