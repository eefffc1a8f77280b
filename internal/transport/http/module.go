package http

import (
	"go.uber.org/fx"

	analyticstransport "github.com/furfield/procurement/internal/transport/http/analytics"
	inventorytransport "github.com/furfield/procurement/internal/transport/http/inventory"
	performancetransport "github.com/furfield/procurement/internal/transport/http/performance"
	purchaseordertransport "github.com/furfield/procurement/internal/transport/http/purchaseorder"
	rfqtransport "github.com/furfield/procurement/internal/transport/http/rfq"
	suppliertransport "github.com/furfield/procurement/internal/transport/http/supplier"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	suppliertransport.Module,
	purchaseordertransport.Module,
	inventorytransport.Module,
	analyticstransport.Module,
	rfqtransport.Module,
	performancetransport.Module,
)
