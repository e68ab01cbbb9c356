package rotation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments for rotation runs
type Metrics struct {
	runDuration     metric.Float64Histogram
	templatesTotal  metric.Int64Counter
	versionsCreated metric.Int64Counter
	cleanupSteps    metric.Int64Counter
	reclaimedBytes  metric.Int64Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runDuration, err := meter.Float64Histogram(
		"amirotate_run_duration_seconds",
		metric.WithDescription("Duration of rotation runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	templatesTotal, err := meter.Int64Counter(
		"amirotate_templates_total",
		metric.WithDescription("Total number of templates processed, by action"),
	)
	if err != nil {
		return nil, err
	}

	versionsCreated, err := meter.Int64Counter(
		"amirotate_versions_created_total",
		metric.WithDescription("Total number of launch template versions created"),
	)
	if err != nil {
		return nil, err
	}

	cleanupSteps, err := meter.Int64Counter(
		"amirotate_cleanup_steps_total",
		metric.WithDescription("Total number of cleanup steps, by step and result"),
	)
	if err != nil {
		return nil, err
	}

	reclaimedBytes, err := meter.Int64Counter(
		"amirotate_snapshot_reclaimed_bytes_total",
		metric.WithDescription("Provisioned size of deleted snapshots"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runDuration:     runDuration,
		templatesTotal:  templatesTotal,
		versionsCreated: versionsCreated,
		cleanupSteps:    cleanupSteps,
		reclaimedBytes:  reclaimedBytes,
	}, nil
}

// RecordRun records a completed run
func (m *Metrics) RecordRun(ctx context.Context, status Status, dryRun bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("status", status.String()),
		attribute.Bool("dry_run", dryRun),
	))
}

// RecordTemplate records the action taken for one template
func (m *Metrics) RecordTemplate(ctx context.Context, report TemplateReport, dryRun bool) {
	if m == nil {
		return
	}
	m.templatesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(report.Action)),
		attribute.Bool("dry_run", dryRun),
	))
	if dryRun {
		return
	}
	if report.Action == ActionPromoted {
		m.versionsCreated.Add(ctx, 1)
	}
	if b := report.Reclaimed(); b > 0 {
		m.reclaimedBytes.Add(ctx, int64(b.Bytes()))
	}
}

// RecordStep records one cleanup step
func (m *Metrics) RecordStep(ctx context.Context, step Step, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.cleanupSteps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", string(step)),
		attribute.String("result", result),
	))
}
