// Package memory provides an in-memory implementation of the storage
// capability used for tests and local runs without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/storage"
)

// Operation identifies a single table call, passed to failure hooks.
type Operation struct {
	Table string
	Kind  string // select, insert, update or delete
}

// FailureFunc decides whether an operation fails. A nil return lets it run.
type FailureFunc func(op Operation) error

type state struct {
	suppliers   []entity.Supplier
	orders      []entity.PurchaseOrder
	orderItems  []entity.PurchaseOrderItem
	inventory   []entity.InventoryItem
	rfqs        []entity.RequestForQuote
	quotes      []entity.Quote
	performance []entity.VendorPerformance
	activities  []entity.Activity
}

func (s state) clone() state {
	return state{
		suppliers:   cloneRows(s.suppliers, suppliersTable.clone),
		orders:      cloneRows(s.orders, ordersTable.clone),
		orderItems:  cloneRows(s.orderItems, orderItemsTable.clone),
		inventory:   cloneRows(s.inventory, inventoryTable.clone),
		rfqs:        cloneRows(s.rfqs, rfqsTable.clone),
		quotes:      cloneRows(s.quotes, quotesTable.clone),
		performance: cloneRows(s.performance, performanceTable.clone),
		activities:  cloneRows(s.activities, activitiesTable.clone),
	}
}

func cloneRows[T any](rows []T, clone func(T) T) []T {
	if rows == nil {
		return nil
	}
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = clone(row)
	}
	return out
}

// Store holds the tables shared by every handle built from one Factory.
type Store struct {
	mu    sync.RWMutex
	state state

	hookMu sync.RWMutex
	fail   FailureFunc
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// FailWith installs a failure hook; nil removes it.
func (s *Store) FailWith(fn FailureFunc) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.fail = fn
}

func (s *Store) check(table, kind string) error {
	s.hookMu.RLock()
	fn := s.fail
	s.hookMu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(Operation{Table: table, Kind: kind})
}

func (s *Store) runInTx(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&working); err != nil {
		return err
	}
	s.state = working
	return nil
}

type tableSpec[T columnar] struct {
	name  string
	pick  func(st *state) *[]T
	clone func(T) T
	// unique returns a key that must not repeat within the table.
	unique func(T) string
}

var (
	suppliersTable = tableSpec[entity.Supplier]{
		name:  "suppliers",
		pick:  func(st *state) *[]entity.Supplier { return &st.suppliers },
		clone: func(v entity.Supplier) entity.Supplier { return v },
	}
	ordersTable = tableSpec[entity.PurchaseOrder]{
		name: "purchase_orders",
		pick: func(st *state) *[]entity.PurchaseOrder { return &st.orders },
		clone: func(v entity.PurchaseOrder) entity.PurchaseOrder {
			v.Items = nil
			v.ExpectedDeliveryDate = cloneTime(v.ExpectedDeliveryDate)
			v.ActualDeliveryDate = cloneTime(v.ActualDeliveryDate)
			v.ApprovedAt = cloneTime(v.ApprovedAt)
			return v
		},
		unique: func(v entity.PurchaseOrder) string { return v.HospitalID + "/" + v.PONumber },
	}
	orderItemsTable = tableSpec[entity.PurchaseOrderItem]{
		name:  "purchase_order_items",
		pick:  func(st *state) *[]entity.PurchaseOrderItem { return &st.orderItems },
		clone: func(v entity.PurchaseOrderItem) entity.PurchaseOrderItem { return v },
	}
	inventoryTable = tableSpec[entity.InventoryItem]{
		name: "inventory_items",
		pick: func(st *state) *[]entity.InventoryItem { return &st.inventory },
		clone: func(v entity.InventoryItem) entity.InventoryItem {
			v.ExpirationDate = cloneTime(v.ExpirationDate)
			return v
		},
	}
	rfqsTable = tableSpec[entity.RequestForQuote]{
		name: "rfqs",
		pick: func(st *state) *[]entity.RequestForQuote { return &st.rfqs },
		clone: func(v entity.RequestForQuote) entity.RequestForQuote {
			v.SupplierIDs = append([]string(nil), v.SupplierIDs...)
			v.Items = append([]entity.RFQItem(nil), v.Items...)
			return v
		},
		unique: func(v entity.RequestForQuote) string { return v.HospitalID + "/" + v.RFQNumber },
	}
	quotesTable = tableSpec[entity.Quote]{
		name: "quotes",
		pick: func(st *state) *[]entity.Quote { return &st.quotes },
		clone: func(v entity.Quote) entity.Quote {
			v.Items = append([]entity.QuoteItem(nil), v.Items...)
			return v
		},
	}
	performanceTable = tableSpec[entity.VendorPerformance]{
		name:  "vendor_performance",
		pick:  func(st *state) *[]entity.VendorPerformance { return &st.performance },
		clone: func(v entity.VendorPerformance) entity.VendorPerformance { return v },
	}
	activitiesTable = tableSpec[entity.Activity]{
		name:  "procurement_activities",
		pick:  func(st *state) *[]entity.Activity { return &st.activities },
		clone: func(v entity.Activity) entity.Activity { return v },
	}
)

// collection runs table calls either against the shared state under the
// store lock or, inside RunInTx, against the transaction's working copy.
type collection[T columnar] struct {
	spec   tableSpec[T]
	store  *Store
	handle *Handle
	tx     *state
}

func (c collection[T]) access(ctx context.Context, kind string, write bool, fn func(rows *[]T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.handle != nil && c.handle.isClosed() {
		return storage.ErrClosed
	}
	if err := c.store.check(c.spec.name, kind); err != nil {
		return err
	}
	if c.tx != nil {
		return fn(c.spec.pick(c.tx))
	}
	if write {
		c.store.mu.Lock()
		defer c.store.mu.Unlock()
	} else {
		c.store.mu.RLock()
		defer c.store.mu.RUnlock()
	}
	return fn(c.spec.pick(&c.store.state))
}

func (c collection[T]) Select(ctx context.Context, q storage.Query) ([]T, error) {
	var out []T
	err := c.access(ctx, "select", false, func(rows *[]T) error {
		for _, row := range *rows {
			ok, err := matches(row, q.Filters)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, c.spec.clone(row))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if q.Order != nil {
		if err := sortRows(out, *q.Order); err != nil {
			return nil, err
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (c collection[T]) Insert(ctx context.Context, rows ...*T) error {
	return c.access(ctx, "insert", true, func(table *[]T) error {
		staged := make([]T, 0, len(rows))
		for _, row := range rows {
			if row == nil {
				return fmt.Errorf("storage: nil row for %s", c.spec.name)
			}
			candidate := c.spec.clone(*row)
			id, _ := candidate.Column("id")
			for _, existing := range append(*table, staged...) {
				if other, _ := existing.Column("id"); other == id {
					return fmt.Errorf("storage: duplicate id %v in %s", id, c.spec.name)
				}
				if c.spec.unique != nil && c.spec.unique(existing) == c.spec.unique(candidate) {
					return fmt.Errorf("storage: unique constraint violated in %s: %s", c.spec.name, c.spec.unique(candidate))
				}
			}
			staged = append(staged, candidate)
		}
		*table = append(*table, staged...)
		return nil
	})
}

func (c collection[T]) Update(ctx context.Context, row *T, match ...storage.Filter) (int64, error) {
	if row == nil {
		return 0, fmt.Errorf("storage: nil row for %s", c.spec.name)
	}
	if len(match) == 0 {
		return 0, fmt.Errorf("storage: update on %s needs a filter", c.spec.name)
	}
	var affected int64
	err := c.access(ctx, "update", true, func(table *[]T) error {
		for i := range *table {
			ok, err := matches((*table)[i], match)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			(*table)[i] = c.spec.clone(*row)
			affected++
		}
		return nil
	})
	return affected, err
}

func (c collection[T]) Delete(ctx context.Context, match ...storage.Filter) (int64, error) {
	if len(match) == 0 {
		return 0, fmt.Errorf("storage: delete on %s needs a filter", c.spec.name)
	}
	var affected int64
	err := c.access(ctx, "delete", true, func(table *[]T) error {
		kept := (*table)[:0]
		for _, row := range *table {
			ok, err := matches(row, match)
			if err != nil {
				return err
			}
			if ok {
				affected++
				continue
			}
			kept = append(kept, row)
		}
		*table = kept
		return nil
	})
	return affected, err
}

func sortRows[T columnar](rows []T, order storage.Order) error {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		a, okA := rows[i].Column(order.Field)
		b, okB := rows[j].Column(order.Field)
		if !okA || !okB {
			sortErr = fmt.Errorf("%w: %s", storage.ErrUnknownField, order.Field)
			return false
		}
		c, _ := compare(a, b)
		if order.Desc {
			return c > 0
		}
		return c < 0
	})
	return sortErr
}
