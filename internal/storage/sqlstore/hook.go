package sqlstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// queryLogger logs every statement issued by a handle at debug level and
// failures at warn, tagged with the owning service.
type queryLogger struct {
	logger *zap.Logger
}

var _ bun.QueryHook = queryLogger{}

func newQueryLogger(logger *zap.Logger, service string) queryLogger {
	return queryLogger{logger: logger.With(zap.String("db.service", service))}
}

func (q queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (q queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.Duration("duration", time.Since(event.StartTime)),
	}
	if event.Err != nil {
		q.logger.Warn("sql query failed", append(fields, zap.Error(event.Err))...)
		return
	}
	if ce := q.logger.Check(zap.DebugLevel, "sql query"); ce != nil {
		ce.Write(append(fields, zap.String("query", event.Query))...)
	}
}
