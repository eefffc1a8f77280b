package registry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/internal/storage/memory"
	"github.com/furfield/procurement/internal/storage/sqlstore"
)

// Module provides the registry, the storage factory for the configured
// driver, and the default procurement storage provider.
var Module = fx.Module("registry",
	fx.Provide(
		NewFactory,
		NewFromConfig,
		DefaultProvider,
	),
)

// NewFactory selects the storage backend named by DB_DRIVER.
func NewFactory(cfg config.Config, logger *zap.Logger) storage.Factory {
	if cfg.Database.Driver == "memory" {
		return memory.NewFactory(nil)
	}
	return sqlstore.NewFactory(cfg.Database, logger)
}

// Params defines dependencies for constructing the Registry.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Factory   storage.Factory
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Meter     metric.Meter `optional:"true"`
	Observers []Observer `group:"registry.observers"`
}

// NewFromConfig builds the process registry. Startup acquires the default
// procurement handle so a misconfigured process fails fast; shutdown closes
// every handle.
func NewFromConfig(p Params) *Registry {
	opts := []Option{
		WithLogger(p.Logger.Named("registry")),
		WithSessionStore(p.Cache),
		WithProduction(p.Config.Observability.IsProduction()),
		WithMeter(p.Meter),
	}
	for _, o := range p.Observers {
		opts = append(opts, WithObserver(o))
	}
	r := New(p.Factory, opts...)

	def := DefaultClient(p.Config)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			h, err := r.Acquire(ctx, def)
			if err != nil {
				return err
			}
			return h.Ping(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return r.Close(ctx)
		},
	})
	return r
}

// DefaultClient is the identity the procurement services run under.
func DefaultClient(cfg config.Config) ClientConfig {
	return ClientConfig{
		ServiceName: cfg.Procurement.ServiceName,
		StorageKey:  cfg.Procurement.StorageKey,
		Options: Options{Headers: map[string]string{
			"X-Client-Info": cfg.App.Name + "/" + cfg.App.Version,
		}},
	}
}

// DefaultProvider binds the default identity for the procurement services.
func DefaultProvider(r *Registry, cfg config.Config) storage.Provider {
	return r.Client(DefaultClient(cfg))
}
