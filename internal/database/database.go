package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/furfield/procurement/internal/config"
)

// Connections bundles writer and reader bun instances.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Close releases both pools.
func (c *Connections) Close() error {
	var closeErr error
	if err := c.Writer.Close(); err != nil {
		closeErr = fmt.Errorf("close writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := c.Reader.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close reader: %w", err))
		}
	}
	return closeErr
}

// Ping checks both pools.
func (c *Connections) Ping(ctx context.Context) error {
	if err := pingContext(ctx, c.Writer); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := pingContext(ctx, c.Reader); err != nil {
			return fmt.Errorf("ping reader: %w", err)
		}
	}
	return nil
}

// Identity tags every connection with the service that owns it.
type Identity struct {
	ServiceName string
	Purpose     string
}

// Module registers shared connections for tooling such as migrations. Request
// traffic goes through handles opened by the connection registry instead.
var Module = fx.Provide(New)

// New opens connections for the process itself and ties them to the Fx lifecycle.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	if cfg.Database.Driver == "memory" {
		return nil, errors.New("database: the memory driver has no SQL connections")
	}

	conns, err := Open(cfg.Database, Identity{ServiceName: cfg.Procurement.ServiceName, Purpose: "tooling"})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected", zap.String("driver", cfg.Database.Driver))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return conns.Close()
		},
	})

	return conns, nil
}

// Open establishes writer and reader pools backed by Bun. The reader pool is
// shared with the writer unless a distinct reader endpoint is configured.
func Open(cfg config.Database, id Identity) (*Connections, error) {
	dial, err := SelectDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	writerSQL, err := openSQLDB(cfg.Driver, cfg.Endpoint, cfg.Credential, id)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	applyPoolSettings(writerSQL, cfg)
	writer := bun.NewDB(writerSQL, dial)

	reader := writer
	if cfg.ReaderEndpoint != "" && cfg.ReaderEndpoint != cfg.Endpoint {
		readerSQL, err := openSQLDB(cfg.Driver, cfg.ReaderEndpoint, cfg.Credential, id)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
		applyPoolSettings(readerSQL, cfg)
		reader = bun.NewDB(readerSQL, dial)
	}

	return &Connections{Writer: writer, Reader: reader}, nil
}

// SelectDialect maps a driver name onto its bun dialect.
func SelectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openSQLDB(driver, endpoint, credential string, id Identity) (*sql.DB, error) {
	if endpoint == "" {
		return nil, errors.New("empty endpoint")
	}

	switch driver {
	case "postgres":
		opts := []pgdriver.Option{pgdriver.WithDSN(endpoint)}
		if credential != "" {
			opts = append(opts, pgdriver.WithPassword(credential))
		}
		if id.ServiceName != "" {
			opts = append(opts, pgdriver.WithApplicationName(id.ServiceName))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case "mysql":
		mcfg, err := mysql.ParseDSN(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse mysql endpoint: %w", err)
		}
		if credential != "" {
			mcfg.Passwd = credential
		}
		mcfg.ParseTime = true
		mcfg.ConnectionAttributes = connectionAttributes(id)
		connector, err := mysql.NewConnector(mcfg)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	case "sqlite":
		return sql.Open("sqlite3", endpoint)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

func connectionAttributes(id Identity) string {
	var attrs []string
	if id.ServiceName != "" {
		attrs = append(attrs, "program_name:"+sanitizeAttr(id.ServiceName))
	}
	if id.Purpose != "" {
		attrs = append(attrs, "service_purpose:"+sanitizeAttr(id.Purpose))
	}
	return strings.Join(attrs, ",")
}

func sanitizeAttr(v string) string {
	return strings.NewReplacer(",", "_", ":", "_").Replace(v)
}

func applyPoolSettings(db *sql.DB, cfg config.Database) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
}

func pingContext(ctx context.Context, db *bun.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.DB.PingContext(pingCtx)
}
