package analytics

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module wires HTTP analytics handlers onto the API group.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(g *echo.Group, h *Handler) {
		Register(g, h)
	}),
)
