package performance

import "go.uber.org/fx"

// Module provides the vendor performance service to Fx.
var Module = fx.Provide(NewService)
