package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/furfield/procurement/internal/config"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		encoding string
		enabled  zapcore.Level
		disabled zapcore.Level
	}{
		{"json info", "info", "json", zapcore.InfoLevel, zapcore.DebugLevel},
		{"console debug", "debug", "console", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"unknown level falls back to info", "loud", "json", zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{Observability: config.Observability{
				ServiceName: "ff-purc",
				LogLevel:    tt.level,
				LogEncoding: tt.encoding,
			}}

			logger, err := Build(cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.disabled))
		})
	}
}
