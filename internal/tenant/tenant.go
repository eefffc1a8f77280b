// Package tenant carries the hospital and user identity set by the host
// platform through request contexts.
package tenant

import (
	"context"
	"strings"

	"github.com/furfield/procurement/pkg/errorbank"
)

const (
	HeaderHospitalID = "X-Hospital-ID"
	HeaderUserID     = "X-User-ID"
)

type ctxKey struct{}

// Identity is the caller as asserted by the host platform.
type Identity struct {
	HospitalID string
	UserID     string
}

// WithIdentity stores id on ctx. Surrounding whitespace is dropped.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.HospitalID = strings.TrimSpace(id.HospitalID)
	id.UserID = strings.TrimSpace(id.UserID)
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored on ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Require returns the identity or a validation error when no hospital is set.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok || id.HospitalID == "" {
		return Identity{}, errorbank.Validation("missing tenant",
			errorbank.WithDetail("header", HeaderHospitalID))
	}
	return id, nil
}

// Actor returns the user id, falling back to "system" for unattended callers
// such as the seeder and the worker.
func (id Identity) Actor() string {
	if id.UserID == "" {
		return "system"
	}
	return id.UserID
}

// Check rejects an empty hospital id passed explicitly to a service call.
func Check(hospitalID string) error {
	if strings.TrimSpace(hospitalID) == "" {
		return errorbank.Validation("missing tenant",
			errorbank.WithDetail("field", "hospital_id"))
	}
	return nil
}
