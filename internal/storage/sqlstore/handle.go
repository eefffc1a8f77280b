package sqlstore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/database"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/storage"
)

// Handle is a storage.Handle over a pair of bun pools.
type Handle struct {
	settings storage.Settings
	conns    *database.Connections

	closeOnce sync.Once
	closeErr  error
}

var _ storage.Handle = (*Handle)(nil)

// NewHandle wraps already opened connections. The handle owns them and
// closes them on Close.
func NewHandle(conns *database.Connections, s storage.Settings, logger *zap.Logger) *Handle {
	if s.Session == nil {
		s.Session = cache.Noop()
	}
	if logger != nil {
		hook := newQueryLogger(logger, s.ServiceName)
		conns.Writer.AddQueryHook(hook)
		if conns.Reader != conns.Writer {
			conns.Reader.AddQueryHook(hook)
		}
	}
	return &Handle{settings: s, conns: conns}
}

func (h *Handle) Name() string         { return h.settings.ServiceName }
func (h *Handle) StorageKey() string   { return h.settings.StorageKey }
func (h *Handle) Session() cache.Store { return h.settings.Session }

func (h *Handle) Metadata() map[string]string {
	out := make(map[string]string, len(h.settings.Metadata))
	for k, v := range h.settings.Metadata {
		out[k] = v
	}
	return out
}

func (h *Handle) Suppliers() storage.Collection[entity.Supplier] {
	return newCollection[entity.Supplier]("suppliers", h.conns.Reader, h.conns.Writer)
}

func (h *Handle) PurchaseOrders() storage.Collection[entity.PurchaseOrder] {
	return newCollection[entity.PurchaseOrder]("purchase_orders", h.conns.Reader, h.conns.Writer)
}

func (h *Handle) PurchaseOrderItems() storage.Collection[entity.PurchaseOrderItem] {
	return newCollection[entity.PurchaseOrderItem]("purchase_order_items", h.conns.Reader, h.conns.Writer)
}

func (h *Handle) Inventory() storage.Collection[entity.InventoryItem] {
	return newCollection[entity.InventoryItem]("inventory_items", h.conns.Reader, h.conns.Writer)
}

func (h *Handle) RFQs() storage.Collection[entity.RequestForQuote] {
	return newCollection[entity.RequestForQuote]("rfqs", h.conns.Reader, h.conns.Writer)
}

func (h *Handle) Quotes() storage.Collection[entity.Quote] {
	return newCollection[entity.Quote]("quotes", h.conns.Reader, h.conns.Writer)
}

func (h *Handle) VendorPerformance() storage.Collection[entity.VendorPerformance] {
	return newCollection[entity.VendorPerformance]("vendor_performance", h.conns.Reader, h.conns.Writer)
}

func (h *Handle) Activities() storage.Collection[entity.Activity] {
	return newCollection[entity.Activity]("procurement_activities", h.conns.Reader, h.conns.Writer)
}

// RunInTx runs fn in a writer transaction. Reads inside fn see its writes.
func (h *Handle) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	ctx, span := storeTracer.Start(ctx, "SQLStore.RunInTx")
	defer span.End()

	err := h.conns.Writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, txTables{tx: tx})
	})
	if err != nil {
		return fail(span, err, "transaction failed")
	}
	return nil
}

func (h *Handle) Ping(ctx context.Context) error {
	return h.conns.Ping(ctx)
}

// Close releases the pools. Repeated calls return the first result.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.conns.Close()
	})
	return h.closeErr
}

type txTables struct {
	tx bun.Tx
}

func (t txTables) Suppliers() storage.Collection[entity.Supplier] {
	return newCollection[entity.Supplier]("suppliers", t.tx, t.tx)
}

func (t txTables) PurchaseOrders() storage.Collection[entity.PurchaseOrder] {
	return newCollection[entity.PurchaseOrder]("purchase_orders", t.tx, t.tx)
}

func (t txTables) PurchaseOrderItems() storage.Collection[entity.PurchaseOrderItem] {
	return newCollection[entity.PurchaseOrderItem]("purchase_order_items", t.tx, t.tx)
}

func (t txTables) Inventory() storage.Collection[entity.InventoryItem] {
	return newCollection[entity.InventoryItem]("inventory_items", t.tx, t.tx)
}

func (t txTables) RFQs() storage.Collection[entity.RequestForQuote] {
	return newCollection[entity.RequestForQuote]("rfqs", t.tx, t.tx)
}

func (t txTables) Quotes() storage.Collection[entity.Quote] {
	return newCollection[entity.Quote]("quotes", t.tx, t.tx)
}

func (t txTables) VendorPerformance() storage.Collection[entity.VendorPerformance] {
	return newCollection[entity.VendorPerformance]("vendor_performance", t.tx, t.tx)
}

func (t txTables) Activities() storage.Collection[entity.Activity] {
	return newCollection[entity.Activity]("procurement_activities", t.tx, t.tx)
}
