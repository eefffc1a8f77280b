// Package procurement reacts to procurement domain events on the bus.
package procurement

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/event"
	"github.com/furfield/procurement/internal/messaging"
	"github.com/furfield/procurement/internal/service/analytics"
	"github.com/furfield/procurement/internal/worker"
)

var workerTracer = otel.Tracer("github.com/furfield/procurement/worker/procurement")

// Module registers procurement worker handlers.
var Module = fx.Module("worker_procurement",
	fx.Provide(
		func(svc *analytics.Service) Invalidator { return svc },
		fx.Annotate(
			NewMetricsRefresher,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Invalidator drops cached dashboard metrics of one hospital.
type Invalidator interface {
	Invalidate(ctx context.Context, hospitalID string) error
}

// NewMetricsRefresher returns a handler that drops a hospital's cached
// metrics whenever one of its procurement events arrives, so replicas that
// did not perform the write also recompute.
func NewMetricsRefresher(metrics Invalidator, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("metrics_refresher")

	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.procurement.refreshMetrics", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		ev, err := event.Decode(msg)
		if err != nil {
			// A malformed event will never decode; acknowledge it.
			logger.Error("failed to decode procurement event", zap.Int64("offset", msg.Offset), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(
			attribute.String("event.type", string(ev.Type)),
			attribute.String("hospital.id", ev.HospitalID),
		)

		if err := metrics.Invalidate(ctx, ev.HospitalID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalidate failed")
			return err
		}
		logger.Debug("metrics invalidated",
			zap.String("hospital_id", ev.HospitalID),
			zap.String("event_type", string(ev.Type)),
			zap.String("reference_id", ev.ReferenceID),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Name:    "metrics_refresher",
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
