package analytics

import "go.uber.org/fx"

// Module provides the analytics service to Fx.
var Module = fx.Provide(NewService)
