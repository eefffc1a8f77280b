// Package request extracts the caller identity and payload from Echo
// contexts for procurement handlers.
package request

import (
	"github.com/labstack/echo/v4"

	"github.com/furfield/procurement/internal/tenant"
	"github.com/furfield/procurement/pkg/errorbank"
)

// Identity returns the tenant identity the Tenant middleware stored.
func Identity(c echo.Context) (tenant.Identity, error) {
	return tenant.Require(c.Request().Context())
}

// Bind decodes the request body into dst, reporting malformed payloads as
// bad requests.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return nil
}
