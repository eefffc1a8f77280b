package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFromContext(t *testing.T) {
	fallback := zap.NewNop()
	scoped := zap.NewExample()

	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.Same(t, scoped, FromContext(WithContext(context.Background(), scoped), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))

	ctx := WithContext(context.Background(), nil)
	assert.Same(t, fallback, FromContext(ctx, fallback))
}
