package storage

import (
	"context"
	"errors"

	"github.com/furfield/procurement/pkg/errorbank"
)

// Fail classifies a storage error for callers. Application errors pass
// through; everything else becomes a storage error carrying the cause.
func Fail(err error, message string, opts ...errorbank.Option) error {
	if err == nil {
		return nil
	}
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errorbank.Storage(message, append(opts, errorbank.WithCause(err))...)
}
