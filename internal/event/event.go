// Package event records procurement activities and announces them on the
// message bus once the surrounding transaction has committed.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/entity"
	"github.com/furfield/procurement/internal/messaging"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/pkg/errorbank"
)

var eventTracer = otel.Tracer("github.com/furfield/procurement/event")

// SchemaVersion is bumped when Event changes incompatibly.
const SchemaVersion = 1

// Header names set on published messages.
const (
	HeaderEventType   = "event-type"
	HeaderHospitalID  = "hospital-id"
	HeaderContentType = "content-type"
)

// Module provides the Recorder.
var Module = fx.Provide(NewRecorder)

// Event is the bus representation of an activity.
type Event struct {
	ID          string              `json:"id"`
	Type        entity.ActivityType `json:"type"`
	HospitalID  string              `json:"hospital_id"`
	ReferenceID string              `json:"reference_id"`
	Description string              `json:"description"`
	OccurredAt  time.Time           `json:"timestamp"`
	Version     int                 `json:"schema_version"`
}

// FromActivity builds the event announcing a.
func FromActivity(a entity.Activity) Event {
	return Event{
		ID:          a.ID,
		Type:        a.Type,
		HospitalID:  a.HospitalID,
		ReferenceID: a.ReferenceID,
		Description: a.Description,
		OccurredAt:  a.OccurredAt,
		Version:     SchemaVersion,
	}
}

// Decode parses an event from a bus message.
func Decode(msg messaging.Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return Event{}, fmt.Errorf("decode procurement event: %w", err)
	}
	if ev.HospitalID == "" {
		ev.HospitalID = msg.Headers[HeaderHospitalID]
	}
	if ev.HospitalID == "" {
		return Event{}, fmt.Errorf("decode procurement event: missing hospital id")
	}
	return ev, nil
}

// MetricsKey is the session cache key of a tenant's purchasing metrics.
func MetricsKey(hospitalID string) string {
	return "metrics:" + hospitalID
}

// Recorder persists activities and publishes them.
type Recorder struct {
	publisher messaging.Client
	logger    *zap.Logger
}

// Params defines dependencies for constructing a Recorder.
type Params struct {
	fx.In

	Publisher messaging.Client
	Logger    *zap.Logger
}

// NewRecorder wires a Recorder from the Fx graph.
func NewRecorder(p Params) *Recorder {
	return New(p.Publisher, p.Logger)
}

// New builds a Recorder. A nil publisher drops events.
func New(publisher messaging.Client, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{publisher: publisher, logger: logger.Named("events")}
}

// Record inserts an activity through tables, normally a transaction, and
// returns it so the caller can Publish after commit.
func (r *Recorder) Record(ctx context.Context, tables storage.Tables, hospitalID string, kind entity.ActivityType, referenceID, description string, at time.Time) (entity.Activity, error) {
	act := entity.Activity{
		ID:          uuid.NewString(),
		HospitalID:  hospitalID,
		Type:        kind,
		ReferenceID: referenceID,
		Description: description,
		OccurredAt:  at,
	}
	if err := tables.Activities().Insert(ctx, &act); err != nil {
		return entity.Activity{}, storage.Fail(err, "failed to record activity",
			errorbank.WithEntity("activity", referenceID, hospitalID))
	}
	return act, nil
}

// Publish drops the cached metrics of every affected tenant from session and
// announces the activities on the bus. Bus failures are logged; the
// activities are already committed.
func (r *Recorder) Publish(ctx context.Context, session cache.Store, acts ...entity.Activity) {
	invalidated := make(map[string]struct{}, len(acts))
	for _, act := range acts {
		if _, done := invalidated[act.HospitalID]; done {
			continue
		}
		invalidated[act.HospitalID] = struct{}{}
		r.Invalidate(ctx, session, act.HospitalID)
	}

	if r.publisher == nil {
		return
	}
	for _, act := range acts {
		r.publish(ctx, FromActivity(act))
	}
}

// Invalidate drops a tenant's cached metrics after a mutation that records
// no activity.
func (r *Recorder) Invalidate(ctx context.Context, session cache.Store, hospitalID string) {
	if session == nil {
		return
	}
	if err := session.Delete(ctx, MetricsKey(hospitalID)); err != nil {
		r.logger.Warn("metrics cache invalidation failed",
			zap.String("hospital_id", hospitalID), zap.Error(err))
	}
}

func (r *Recorder) publish(ctx context.Context, ev Event) {
	ctx, span := eventTracer.Start(ctx, "Recorder.Publish", trace.WithAttributes(
		attribute.String("event.type", string(ev.Type)),
		attribute.String("hospital.id", ev.HospitalID),
	))
	defer span.End()

	payload, err := json.Marshal(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal error")
		r.logger.Error("marshal procurement event", zap.Error(err))
		return
	}

	msg := messaging.Message{
		Key:   []byte(ev.HospitalID),
		Value: payload,
		Headers: map[string]string{
			HeaderEventType:   string(ev.Type),
			HeaderHospitalID:  ev.HospitalID,
			HeaderContentType: "application/json",
		},
	}
	if err := r.publisher.Publish(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish error")
		r.logger.Error("publish procurement event",
			zap.String("type", string(ev.Type)),
			zap.String("reference_id", ev.ReferenceID),
			zap.Error(err),
		)
	}
}
