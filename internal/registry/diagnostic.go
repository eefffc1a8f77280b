package registry

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DiagnosticKind names a duplicate-handle condition.
type DiagnosticKind string

const (
	// DiagnosticSharedStorageKey: a new handle reuses the storage key of
	// another active handle, so both would read the same session state.
	DiagnosticSharedStorageKey DiagnosticKind = "shared_storage_key"
	// DiagnosticConflictingStorageKey: an existing handle was requested again
	// with a different storage key; the existing handle is returned.
	DiagnosticConflictingStorageKey DiagnosticKind = "conflicting_storage_key"
)

// Diagnostic describes the registry state when a duplicate was detected.
type Diagnostic struct {
	Kind        DiagnosticKind
	ServiceName string
	StorageKey  string
	ActiveCount int
	ActiveKeys  []string
}

// Observer receives diagnostics. It runs outside the registry lock.
type Observer func(Diagnostic)

func (r *Registry) diagnosticLocked(kind DiagnosticKind, serviceName, storageKey string) Diagnostic {
	keys := make([]string, 0, len(r.entries))
	for _, h := range r.entries {
		keys = append(keys, h.StorageKey())
	}
	sort.Strings(keys)
	return Diagnostic{
		Kind:        kind,
		ServiceName: serviceName,
		StorageKey:  storageKey,
		ActiveCount: len(r.entries),
		ActiveKeys:  keys,
	}
}

func (r *Registry) emit(ctx context.Context, d Diagnostic) {
	r.diagnostics.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(d.Kind))))

	level := zap.WarnLevel
	if r.production {
		level = zap.DebugLevel
	}
	if ce := r.logger.Check(level, "duplicate storage handle detected"); ce != nil {
		ce.Write(
			zap.String("kind", string(d.Kind)),
			zap.String("service", d.ServiceName),
			zap.String("storage_key", d.StorageKey),
			zap.Int("active_handles", d.ActiveCount),
			zap.Strings("active_storage_keys", d.ActiveKeys),
		)
	}

	for _, observe := range r.observers {
		observe(d)
	}
}
