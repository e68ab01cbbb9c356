package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, level)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)

	f, err = ParseFormat("Text")
	require.NoError(t, err)
	require.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, FormatJSON, slog.LevelInfo).With("run_id", "r1")

	ctx := AddToContext(context.Background(), log)
	FromContext(ctx).Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "hello", record["msg"])
	require.Equal(t, "r1", record["run_id"])
}

func TestFromContextDefault(t *testing.T) {
	require.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestNewFansOutToExtraHandlers(t *testing.T) {
	var stdout, extra bytes.Buffer
	log := New(&stdout, FormatText, slog.LevelInfo,
		slog.NewJSONHandler(&extra, &slog.HandlerOptions{Level: slog.LevelDebug}),
		nil,
	)

	log.With("template_id", "lt-1").Info("created new version")
	log.Debug("resolved latest image")

	require.Contains(t, stdout.String(), "created new version")
	require.NotContains(t, stdout.String(), "resolved latest image")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(extra.Bytes()), &rec))
	require.Equal(t, "created new version", rec["msg"])
	require.Equal(t, "lt-1", rec["template_id"])
	require.NotContains(t, extra.String(), "resolved latest image", "extra handlers follow the logger level")
}
