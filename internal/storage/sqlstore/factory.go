package sqlstore

import (
	"context"

	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/database"
	"github.com/furfield/procurement/internal/storage"
	"github.com/furfield/procurement/pkg/errorbank"
)

// Factory opens one connection pair per handle so each service identity is
// visible to the database under its own application name.
type Factory struct {
	cfg    config.Database
	logger *zap.Logger
	open   func(config.Database, database.Identity) (*database.Connections, error)
}

var _ storage.Factory = (*Factory)(nil)

// NewFactory builds a SQL factory for the configured driver.
func NewFactory(cfg config.Database, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger, open: database.Open}
}

func (f *Factory) Driver() string { return f.cfg.Driver }

// Validate reports which remote coordinates are missing. SQLite is local and
// only needs a file endpoint.
func (f *Factory) Validate() error {
	var missing []string
	if f.cfg.Endpoint == "" {
		missing = append(missing, "DB_ENDPOINT")
	}
	if f.cfg.Credential == "" && f.cfg.Driver != "sqlite" {
		missing = append(missing, "DB_CREDENTIAL")
	}
	if len(missing) == 0 {
		return nil
	}
	return errorbank.Configuration("missing storage configuration",
		errorbank.WithDetail("driver", f.cfg.Driver),
		errorbank.WithDetail("missing", missing),
	)
}

func (f *Factory) New(ctx context.Context, s storage.Settings) (storage.Handle, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conns, err := f.open(f.cfg, database.Identity{
		ServiceName: s.ServiceName,
		Purpose:     s.Metadata["X-Service-Purpose"],
	})
	if err != nil {
		return nil, errorbank.Storage("open storage connection", errorbank.WithCause(err),
			errorbank.WithDetail("service", s.ServiceName))
	}
	return NewHandle(conns, s, f.logger), nil
}
