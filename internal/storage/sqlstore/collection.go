package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/furfield/procurement/internal/storage"
)

var storeTracer = otel.Tracer("github.com/furfield/procurement/storage/sqlstore")

// columnar is implemented by every entity; it doubles as the column
// allowlist for filters and ordering.
type columnar interface {
	Column(name string) (any, bool)
}

// collection is a storage.Collection over one bun model. Reads use reader,
// writes use writer; inside a transaction both point at the bun.Tx.
type collection[T columnar] struct {
	table  string
	reader bun.IDB
	writer bun.IDB
}

func newCollection[T columnar](table string, reader, writer bun.IDB) collection[T] {
	return collection[T]{table: table, reader: reader, writer: writer}
}

func (c collection[T]) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return storeTracer.Start(ctx, "SQLStore."+op, trace.WithAttributes(
		attribute.String("db.sql.table", c.table),
		attribute.String("db.operation", op),
	))
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}

func known[T columnar](field string) bool {
	var zero T
	_, ok := zero.Column(field)
	return ok
}

// clause renders one filter. Field names are validated against the entity
// and quoted as identifiers.
func clause[T columnar](f storage.Filter) (string, []any, error) {
	if !known[T](f.Field) {
		return "", nil, fmt.Errorf("%w: %s", storage.ErrUnknownField, f.Field)
	}
	ident := bun.Ident(f.Field)
	switch f.Op {
	case storage.OpEq, "":
		return "? = ?", []any{ident, f.Value}, nil
	case storage.OpNeq:
		return "? <> ?", []any{ident, f.Value}, nil
	case storage.OpLt:
		return "? < ?", []any{ident, f.Value}, nil
	case storage.OpLte:
		return "? <= ?", []any{ident, f.Value}, nil
	case storage.OpGt:
		return "? > ?", []any{ident, f.Value}, nil
	case storage.OpGte:
		return "? >= ?", []any{ident, f.Value}, nil
	case storage.OpIn:
		return "? IN (?)", []any{ident, bun.In(f.Value)}, nil
	}
	return "", nil, fmt.Errorf("storage: unsupported operator %q", f.Op)
}

type whereable[Q any] interface {
	Where(query string, args ...any) Q
}

func applyFilters[T columnar, Q whereable[Q]](q Q, filters []storage.Filter) (Q, error) {
	for _, f := range filters {
		expr, args, err := clause[T](f)
		if err != nil {
			return q, err
		}
		q = q.Where(expr, args...)
	}
	return q, nil
}

func (c collection[T]) Select(ctx context.Context, q storage.Query) ([]T, error) {
	ctx, span := c.start(ctx, "Select")
	defer span.End()

	var rows []T
	sel, err := applyFilters[T](c.reader.NewSelect().Model(&rows), q.Filters)
	if err != nil {
		return nil, fail(span, err, "invalid filter")
	}
	if q.Order != nil {
		if !known[T](q.Order.Field) {
			return nil, fail(span, fmt.Errorf("%w: %s", storage.ErrUnknownField, q.Order.Field), "invalid order")
		}
		if q.Order.Desc {
			sel = sel.OrderExpr("? DESC", bun.Ident(q.Order.Field))
		} else {
			sel = sel.OrderExpr("? ASC", bun.Ident(q.Order.Field))
		}
	}
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}

	if err := sel.Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	span.SetAttributes(attribute.Int("db.rows", len(rows)))
	return rows, nil
}

func (c collection[T]) Insert(ctx context.Context, rows ...*T) error {
	ctx, span := c.start(ctx, "Insert")
	defer span.End()

	for _, row := range rows {
		if row == nil {
			return fail(span, fmt.Errorf("storage: nil row for %s", c.table), "nil row")
		}
		if _, err := c.writer.NewInsert().Model(row).Exec(ctx); err != nil {
			return fail(span, err, "insert failed")
		}
	}
	return nil
}

func (c collection[T]) Update(ctx context.Context, row *T, match ...storage.Filter) (int64, error) {
	ctx, span := c.start(ctx, "Update")
	defer span.End()

	if row == nil {
		return 0, fail(span, fmt.Errorf("storage: nil row for %s", c.table), "nil row")
	}
	if len(match) == 0 {
		return 0, fail(span, fmt.Errorf("storage: update on %s needs a filter", c.table), "unfiltered update")
	}
	upd, err := applyFilters[T](c.writer.NewUpdate().Model(row), match)
	if err != nil {
		return 0, fail(span, err, "invalid filter")
	}
	res, err := upd.Exec(ctx)
	if err != nil {
		return 0, fail(span, err, "update failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fail(span, err, "rows affected")
	}
	return n, nil
}

func (c collection[T]) Delete(ctx context.Context, match ...storage.Filter) (int64, error) {
	ctx, span := c.start(ctx, "Delete")
	defer span.End()

	if len(match) == 0 {
		return 0, fail(span, fmt.Errorf("storage: delete on %s needs a filter", c.table), "unfiltered delete")
	}
	del, err := applyFilters[T](c.writer.NewDelete().Model((*T)(nil)), match)
	if err != nil {
		return 0, fail(span, err, "invalid filter")
	}
	res, err := del.Exec(ctx)
	if err != nil {
		return 0, fail(span, err, "delete failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fail(span, err, "rows affected")
	}
	return n, nil
}
