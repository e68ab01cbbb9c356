package providers

import (
	"context"
	"log/slog"
	"testing"

	"github.com/onkernel/amirotate/cmd/rotator/config"
	"github.com/onkernel/amirotate/lib/rotation"
	"github.com/stretchr/testify/require"
)

func TestProvideConfigAppliesOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KEEP_AMIS", "3")
	t.Setenv("DRY_RUN", "")

	keep, dry := 6, true
	cfg, err := ProvideConfig(config.Overrides{KeepAMIs: &keep, DryRun: &dry})
	require.NoError(t, err)
	require.Equal(t, 6, cfg.KeepAMIs)
	require.True(t, cfg.DryRun)
}

func TestProvideConfigRejectsInvalidOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KEEP_AMIS", "")

	keep := -2
	_, err := ProvideConfig(config.Overrides{KeepAMIs: &keep})
	require.ErrorIs(t, err, rotation.ErrInvalidConfig)
}

func TestProvideTelemetryWithoutEndpoint(t *testing.T) {
	cfg := &config.Config{OtelServiceName: "amirotate"}

	tel, cleanup, err := ProvideTelemetry(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	require.False(t, tel.Enabled())
	require.NotNil(t, tel.Meter)
	require.NotNil(t, tel.Tracer)
}

func TestProvideRotationManager(t *testing.T) {
	cfg := &config.Config{KeepAMIs: 3, SourceVersion: "$Default", Parallelism: 1, LogLevel: "info", LogFormat: "json"}

	tel, cleanup, err := ProvideTelemetry(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	mgr, err := ProvideRotationManager(cfg, nil, nil, slog.New(slog.DiscardHandler), tel)
	require.NoError(t, err)
	require.NotNil(t, mgr)
}

func TestProvideLoggerWithoutLogExport(t *testing.T) {
	cfg := &config.Config{LogLevel: "warn", LogFormat: "text", OtelServiceName: "amirotate"}

	tel, cleanup, err := ProvideTelemetry(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	log := ProvideLogger(cfg, tel)
	require.False(t, log.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, log.Enabled(context.Background(), slog.LevelWarn))
}
