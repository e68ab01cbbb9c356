package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nrednav/cuid2"
	"github.com/onkernel/amirotate/lib/images"
	"github.com/onkernel/amirotate/lib/logger"
	"github.com/onkernel/amirotate/lib/templates"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

// Manager runs template rotation
type Manager interface {
	// Run rotates every participating template and prunes old versions.
	// The returned report is never nil.
	Run(ctx context.Context) *Report
}

type manager struct {
	config    Config
	images    images.Manager
	templates templates.Manager
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// NewManager creates a new rotation manager
func NewManager(
	config Config,
	imageMgr images.Manager,
	templateMgr templates.Manager,
	logger *slog.Logger,
	meter metric.Meter,
	tracer trace.Tracer,
) (Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("amirotate/rotation")
	}

	m := &manager{
		config:    config,
		images:    imageMgr,
		templates: templateMgr,
		logger:    logger,
		tracer:    tracer,
	}

	// Initialize metrics if meter is provided
	if meter != nil {
		metrics, err := NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		m.metrics = metrics
	}

	return m, nil
}

func (m *manager) Run(ctx context.Context) *Report {
	start := time.Now()
	report := &Report{
		RunID:  cuid2.Generate(),
		DryRun: m.config.DryRun,
	}

	log := m.logger.With("run_id", report.RunID)
	if m.config.DryRun {
		log = log.With("dry_run", true)
	}
	ctx = logger.AddToContext(ctx, log)

	report.Outcome = m.run(ctx, report)

	m.metrics.RecordRun(ctx, report.Outcome.Status, m.config.DryRun, time.Since(start))
	if report.Outcome.Status == StatusAborted {
		log.ErrorContext(ctx, "rotation aborted", "report", report)
	} else {
		log.InfoContext(ctx, "rotation finished", "report", report)
	}
	return report
}

func (m *manager) run(ctx context.Context, report *Report) Outcome {
	log := logger.FromContext(ctx)

	tmpls, err := m.templates.ListParticipating(ctx)
	if err != nil {
		return aborted(fmt.Errorf("%w: %w", ErrCatalog, err))
	}
	if len(tmpls) == 0 {
		log.InfoContext(ctx, "found no launch templates with the search tag", "tag", templates.SearchTagKey)
		return Outcome{Status: StatusDone}
	}
	log.InfoContext(ctx, "found launch templates", "count", len(tmpls))

	report.Templates = make([]TemplateReport, len(tmpls))

	// With a limit of 1 templates run one at a time in listing order. The
	// first fatal error cancels gctx and every later template is skipped.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.Parallelism)
	for i, tmpl := range tmpls {
		g.Go(func() error {
			if gctx.Err() != nil {
				report.Templates[i] = TemplateReport{
					TemplateID:   tmpl.ID,
					TemplateName: tmpl.Name,
					Action:       ActionSkipped,
				}
				return nil
			}
			rep, err := m.rotateTemplate(gctx, tmpl)
			report.Templates[i] = rep
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return aborted(err)
	}
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	return Outcome{Status: StatusDone}
}

// rotateTemplate drives one template through resolve, decide, promote and
// prune. A returned error is fatal for the whole run.
func (m *manager) rotateTemplate(ctx context.Context, tmpl templates.Template) (TemplateReport, error) {
	ctx, span := m.tracer.Start(ctx, "rotation.template", trace.WithAttributes(
		attribute.String("template.id", tmpl.ID),
		attribute.String("template.name", tmpl.Name),
	))
	defer span.End()

	log := logger.FromContext(ctx).With("template_id", tmpl.ID, "template_name", tmpl.Name)
	ctx = logger.AddToContext(ctx, log)

	rep := TemplateReport{
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
	}

	fail := func(err error) (TemplateReport, error) {
		rep.Action = ActionAborted
		rep.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.RecordTemplate(ctx, rep, m.config.DryRun)
		return rep, err
	}

	d, err := m.decide(ctx, tmpl)
	if err != nil {
		return fail(err)
	}
	rep.ImageID = d.ImageID
	rep.PreviousVersion = d.Source.Number

	current, err := m.promote(ctx, tmpl, d)
	if err != nil {
		return fail(err)
	}
	rep.CurrentVersion = current
	rep.Action = ActionNoop
	if d.Create {
		rep.Action = ActionPromoted
	}

	rep.Plan = PlanPrune(current, m.config.Keep)
	pruned, err := m.prune(ctx, tmpl, rep.Plan)
	if err != nil {
		// cleanup problems never abort the run
		log.WarnContext(ctx, "could not list versions to prune", "error", err)
		rep.Err = err
	}
	rep.Pruned = pruned

	span.SetAttributes(
		attribute.String("rotation.action", string(rep.Action)),
		attribute.Int64("rotation.current_version", current),
		attribute.Int("rotation.pruned", len(pruned)),
	)
	m.metrics.RecordTemplate(ctx, rep, m.config.DryRun)

	log.InfoContext(ctx, "template done",
		"action", rep.Action,
		"current_version", current,
		"pruned", len(pruned),
		"cleanup_failures", len(rep.CleanupFailures()),
		"reclaimed", rep.Reclaimed().HumanReadable(),
	)
	return rep, nil
}

// logStep logs and counts the result of one cleanup step
func (m *manager) logStep(ctx context.Context, log *slog.Logger, step Step, resourceID string, err error) {
	m.metrics.RecordStep(ctx, step, err)
	if err != nil {
		log.WarnContext(ctx, "cleanup step failed", "step", step, "resource_id", resourceID, "error", err)
		return
	}
	log.InfoContext(ctx, "cleanup step done", "step", step, "resource_id", resourceID)
}

func aborted(err error) Outcome {
	return Outcome{Status: StatusAborted, Reason: err}
}
