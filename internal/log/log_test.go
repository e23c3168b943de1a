package log

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/levenlabs/go-llog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	ctx := context.Background()

	l1 := Ctx(ctx)
	require.NotNil(t, l1, "Ctx returned nil instead of default logger")
	assert.Equal(t, defaultLogger, l1, "Ctx should return defaultLogger")

	customLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	require.NotEqual(t, defaultLogger, customLogger)

	l2 := Ctx(With(ctx, customLogger))
	require.NotNil(t, l2)
	assert.Equal(t, customLogger, l2, "Ctx should return customLogger")
}

func TestSetDefaultLogLevel(t *testing.T) {
	defer SetDefaultLogLevel(slog.LevelInfo)

	SetDefaultLogLevel(slog.LevelWarn)
	assert.False(t, Ctx(context.Background()).Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, Ctx(context.Background()).Enabled(context.Background(), slog.LevelError))
}

func TestFromLLog(t *testing.T) {
	cases := map[llog.Level]slog.Level{
		llog.DebugLevel: slog.LevelDebug,
		llog.InfoLevel:  slog.LevelInfo,
		llog.WarnLevel:  slog.LevelWarn,
		llog.ErrorLevel: slog.LevelError,
	}
	for in, want := range cases {
		got, err := FromLLog(in)
		require.NoError(t, err, in.String())
		assert.Equal(t, want, got)
	}
}
