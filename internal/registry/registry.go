// Package registry keeps exactly one live storage handle per logical service
// identity. Handles are keyed by service name and scoped to their own session
// storage key.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/pkg/errorbank"
)

const (
	HeaderServiceName    = "X-Service-Name"
	HeaderServicePurpose = "X-Service-Purpose"
	HeaderPriority       = "X-HMS-Priority"

	servicePurpose  = "procurement"
	servicePriority = "5"
)

// Options tunes a handle at construction.
type Options struct {
	// Headers are merged over the service-identifying metadata.
	Headers map[string]string
}

// ClientConfig identifies the caller of Acquire.
type ClientConfig struct {
	ServiceName string
	StorageKey  string
	Options     Options
}

// Registry owns every storage handle in the process.
type Registry struct {
	mu       sync.Mutex
	factory  storage.Factory
	sessions cache.Store
	entries  map[string]storage.Handle
	retired  []storage.Handle

	observers  []Observer
	logger     *zap.Logger
	production bool

	diagnostics metric.Int64Counter
	created     metric.Int64Counter
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for lifecycle and diagnostic messages.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSessionStore sets the backing store that handle sessions are carved from.
func WithSessionStore(store cache.Store) Option {
	return func(r *Registry) {
		if store != nil {
			r.sessions = store
		}
	}
}

// WithObserver subscribes fn to duplicate-handle diagnostics.
func WithObserver(fn Observer) Option {
	return func(r *Registry) {
		if fn != nil {
			r.observers = append(r.observers, fn)
		}
	}
}

// WithProduction lowers diagnostic log output to debug level.
func WithProduction(production bool) Option {
	return func(r *Registry) {
		r.production = production
	}
}

// WithMeter records registry instruments on meter instead of the global one.
func WithMeter(meter metric.Meter) Option {
	return func(r *Registry) {
		if meter != nil {
			r.initInstruments(meter)
		}
	}
}

// New builds an empty registry over factory.
func New(factory storage.Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		sessions: cache.Noop(),
		entries:  make(map[string]storage.Handle),
		logger:   zap.NewNop(),
	}
	r.initInstruments(otel.Meter("github.com/furfield/procurement/registry"))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) initInstruments(meter metric.Meter) {
	// Instrument errors leave a no-op instrument in place.
	r.diagnostics, _ = meter.Int64Counter("procurement.registry.diagnostics",
		metric.WithDescription("Duplicate storage handle diagnostics emitted by the connection registry"))
	r.created, _ = meter.Int64Counter("procurement.registry.handles_created",
		metric.WithDescription("Storage handles constructed by the connection registry"))
}

// Acquire returns the handle registered for cfg.ServiceName, constructing it
// on first use. Construction fails with a configuration error when the
// storage driver lacks its remote coordinates.
func (r *Registry) Acquire(ctx context.Context, cfg ClientConfig) (storage.Handle, error) {
	if cfg.ServiceName == "" {
		return nil, errorbank.Configuration("service name is required to acquire a storage handle")
	}
	storageKey := cfg.StorageKey
	if storageKey == "" {
		storageKey = cfg.ServiceName
	}

	var pending []Diagnostic
	defer func() {
		for _, d := range pending {
			r.emit(ctx, d)
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[cfg.ServiceName]; ok {
		if cfg.StorageKey != "" && existing.StorageKey() != cfg.StorageKey {
			pending = append(pending, r.diagnosticLocked(DiagnosticConflictingStorageKey, cfg.ServiceName, cfg.StorageKey))
		}
		return existing, nil
	}

	if r.factory == nil {
		return nil, errorbank.Configuration("no storage factory configured")
	}
	if err := r.factory.Validate(); err != nil {
		return nil, asConfiguration(err, cfg.ServiceName)
	}

	for _, other := range r.entries {
		if other.StorageKey() == storageKey {
			pending = append(pending, r.diagnosticLocked(DiagnosticSharedStorageKey, cfg.ServiceName, storageKey))
			break
		}
	}

	handle, err := r.factory.New(ctx, storage.Settings{
		ServiceName: cfg.ServiceName,
		StorageKey:  storageKey,
		Metadata:    metadata(cfg),
		Session:     cache.Namespace(r.sessions, storageKey),
	})
	if err != nil {
		return nil, storage.Fail(err, "construct storage handle",
			errorbank.WithDetail("service", cfg.ServiceName))
	}

	r.entries[cfg.ServiceName] = handle
	r.created.Add(ctx, 1, metric.WithAttributes(attribute.String("driver", r.factory.Driver())))
	r.logger.Info("storage handle created",
		zap.String("service", cfg.ServiceName),
		zap.String("storage_key", storageKey),
		zap.String("priority", servicePriority),
		zap.Int("active_handles", len(r.entries)),
	)
	return handle, nil
}

// Release forgets the handle for serviceName. In-flight calls on it keep
// working; it is closed at teardown. It reports whether an entry existed.
func (r *Registry) Release(serviceName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.entries[serviceName]
	if !ok {
		return false
	}
	delete(r.entries, serviceName)
	r.retired = append(r.retired, handle)
	r.logger.Info("storage handle released", zap.String("service", serviceName))
	return true
}

// Clear forgets every handle.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, handle := range r.entries {
		r.retired = append(r.retired, handle)
		delete(r.entries, name)
	}
	r.logger.Info("storage handles cleared")
}

// List returns the active service names in lexical order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of active handles.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close clears the registry and closes every handle it ever constructed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	handles := r.retired
	for name, handle := range r.entries {
		handles = append(handles, handle)
		delete(r.entries, name)
	}
	r.retired = nil
	r.mu.Unlock()

	var closeErr error
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return errors.Join(closeErr, err)
		}
		if err := h.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}
	return closeErr
}

// Client binds a fixed identity to the registry.
func (r *Registry) Client(cfg ClientConfig) storage.Provider {
	return storage.ProviderFunc(func(ctx context.Context) (storage.Handle, error) {
		return r.Acquire(ctx, cfg)
	})
}

func metadata(cfg ClientConfig) map[string]string {
	md := map[string]string{
		HeaderServiceName:    cfg.ServiceName,
		HeaderServicePurpose: servicePurpose,
		HeaderPriority:       servicePriority,
	}
	for k, v := range cfg.Options.Headers {
		md[k] = v
	}
	return md
}

func asConfiguration(err error, serviceName string) error {
	if errorbank.IsKind(err, errorbank.KindConfiguration) {
		return err
	}
	return errorbank.Configuration("invalid storage configuration",
		errorbank.WithCause(err),
		errorbank.WithDetail("service", serviceName))
}
