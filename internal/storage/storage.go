// Package storage defines the table-oriented capability every procurement
// service uses to reach persisted data. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/entity"
)

// Op is a comparison operator understood by every backend.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpIn  Op = "in"
)

// Filter restricts rows by comparing a column against a value. For OpIn the
// value must be a slice.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq is shorthand for an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// Tenant restricts rows to one hospital.
func Tenant(hospitalID string) Filter {
	return Eq("hospital_id", hospitalID)
}

// Order sorts the result set by one column.
type Order struct {
	Field string
	Desc  bool
}

// Query describes a select. A zero Limit returns every match.
type Query struct {
	Filters []Filter
	Order   *Order
	Limit   int
}

// Where builds a query from filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// OrderBy sets the sort column.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Order = &Order{Field: field, Desc: desc}
	return q
}

// Take caps the number of returned rows.
func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}

// ErrUnknownField is returned when a filter or order names a column the
// table does not expose.
var ErrUnknownField = errors.New("storage: unknown field")

// ErrClosed is returned by handles used after Close.
var ErrClosed = errors.New("storage: handle closed")

// Collection is typed access to one table.
type Collection[T any] interface {
	Select(ctx context.Context, q Query) ([]T, error)
	Insert(ctx context.Context, rows ...*T) error
	Update(ctx context.Context, row *T, match ...Filter) (int64, error)
	Delete(ctx context.Context, match ...Filter) (int64, error)
}

// Tables groups the collections of the procurement schema.
type Tables interface {
	Suppliers() Collection[entity.Supplier]
	PurchaseOrders() Collection[entity.PurchaseOrder]
	PurchaseOrderItems() Collection[entity.PurchaseOrderItem]
	Inventory() Collection[entity.InventoryItem]
	RFQs() Collection[entity.RequestForQuote]
	Quotes() Collection[entity.Quote]
	VendorPerformance() Collection[entity.VendorPerformance]
	Activities() Collection[entity.Activity]
}

// Tx is the view of a handle inside a transaction.
type Tx interface {
	Tables
}

// Handle is one live storage client owned by the connection registry.
type Handle interface {
	Tables

	// Name is the service identity the handle was acquired for.
	Name() string
	// StorageKey namespaces the handle's session cache.
	StorageKey() string
	// Metadata returns the request headers sent with every call.
	Metadata() map[string]string
	// Session is the handle's isolated credential and scratch cache.
	Session() cache.Store

	// RunInTx executes fn atomically. Any error returned by fn rolls back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Settings is what a factory needs to build a handle.
type Settings struct {
	ServiceName string
	StorageKey  string
	Metadata    map[string]string
	Session     cache.Store
}

// Factory constructs handles for the registry.
type Factory interface {
	// Driver names the backend, e.g. "memory" or "postgres".
	Driver() string
	// Validate checks that remote coordinates are configured.
	Validate() error
	New(ctx context.Context, s Settings) (Handle, error)
}

// First returns the first row of a query, or false when nothing matched.
func First[T any](ctx context.Context, c Collection[T], filters ...Filter) (*T, bool, error) {
	rows, err := c.Select(ctx, Where(filters...).Take(1))
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return &rows[0], true, nil
}

// Provider hands out the handle a service should use for its next call.
type Provider interface {
	Handle(ctx context.Context) (Handle, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Handle, error)

func (f ProviderFunc) Handle(ctx context.Context) (Handle, error) { return f(ctx) }

// Static always returns h.
func Static(h Handle) Provider {
	return ProviderFunc(func(context.Context) (Handle, error) { return h, nil })
}
