package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		cfg  Config
		want zapcore.Level
	}{
		{Config{}, zapcore.InfoLevel},
		{Config{Level: "debug"}, zapcore.DebugLevel},
		{Config{Level: "warn", Environment: "production"}, zapcore.WarnLevel},
		{Config{Level: "error", ServiceName: "hera"}, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Level+"/"+tt.cfg.Environment, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core).With(zap.String("request_id", "r-1"))

	ctx := WithContext(context.Background(), l)
	FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "r-1", logs.All()[0].ContextMap()["request_id"])

	// a bare context yields a usable logger
	assert.NotNil(t, FromContext(context.Background()))
	FromContext(context.Background()).Info("dropped")
}
