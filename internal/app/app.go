package app

import (
	"go.uber.org/fx"

	"github.com/furfield/procurement/internal/cache"
	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/internal/database"
	"github.com/furfield/procurement/internal/event"
	"github.com/furfield/procurement/internal/logger"
	"github.com/furfield/procurement/internal/messaging"
	"github.com/furfield/procurement/internal/migration"
	"github.com/furfield/procurement/internal/observability"
	"github.com/furfield/procurement/internal/registry"
	"github.com/furfield/procurement/internal/seeder"
	"github.com/furfield/procurement/internal/sequence"
	grpcserver "github.com/furfield/procurement/internal/server/grpc"
	httpserver "github.com/furfield/procurement/internal/server/http"
	"github.com/furfield/procurement/internal/service/analytics"
	"github.com/furfield/procurement/internal/service/inventory"
	"github.com/furfield/procurement/internal/service/performance"
	"github.com/furfield/procurement/internal/service/purchaseorder"
	"github.com/furfield/procurement/internal/service/rfq"
	"github.com/furfield/procurement/internal/service/supplier"
	transporthttp "github.com/furfield/procurement/internal/transport/http"
	"github.com/furfield/procurement/internal/validation"
	"github.com/furfield/procurement/internal/worker"
	workerprocurement "github.com/furfield/procurement/internal/worker/procurement"
)

// Infrastructure provides configuration, logging, telemetry and the
// connection registry without any domain services.
var Infrastructure = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	cache.Module,
	messaging.Module,
	registry.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infrastructure,
	validation.Module,
	event.Module,
	sequence.Module,
	supplier.Module,
	purchaseorder.Module,
	inventory.Module,
	analytics.Module,
	rfq.Module,
	performance.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	seeder.Module,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerprocurement.Module,
)

// Migrate opens the SQL tooling connections and the migrator.
var Migrate = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
	migration.Module,
)

// Seed provides the seeder over the connection registry.
var Seed = fx.Options(
	Infrastructure,
	seeder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
