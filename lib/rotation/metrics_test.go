package rotation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRunRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cloud := goldenCloud()
	cloud.failWith("delete-snapshot snap-v2", context.DeadlineExceeded)

	mgr, err := NewManager(DefaultConfig(), cloud, cloud,
		slog.New(slog.NewTextHandler(io.Discard, nil)), provider.Meter("test"), nil)
	require.NoError(t, err)

	report := mgr.Run(context.Background())
	require.Equal(t, StatusDone, report.Outcome.Status)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	var sawDuration bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				if m.Name == "amirotate_run_duration_seconds" {
					sawDuration = len(data.DataPoints) > 0
				}
			}
		}
	}

	require.True(t, sawDuration)
	require.Equal(t, int64(1), sums["amirotate_templates_total"])
	require.Equal(t, int64(1), sums["amirotate_versions_created_total"])
	// three versions, each with deregister, delete-version and one snapshot
	require.Equal(t, int64(9), sums["amirotate_cleanup_steps_total"])
	// snap-v1 and snap-v3 deleted, 8 GiB each
	require.Equal(t, int64(16<<30), sums["amirotate_snapshot_reclaimed_bytes_total"])
}
