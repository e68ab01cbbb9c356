package rotation

import (
	"log/slog"

	"github.com/c2h5oh/datasize"
	"github.com/samber/lo"
)

// Status is the terminal state of a run
type Status int

const (
	StatusDone Status = iota
	StatusAborted
)

// String returns the status string expected by the trigger ("done" or "error")
func (s Status) String() string {
	if s == StatusAborted {
		return "error"
	}
	return "done"
}

// Outcome is the terminal result of a run. Reason is set only when aborted.
type Outcome struct {
	Status Status
	Reason error
}

// Action is what happened to a template during a run
type Action string

const (
	ActionNoop     Action = "noop"     // already on the newest image
	ActionPromoted Action = "promoted" // a new version was created and made default
	ActionAborted  Action = "aborted"  // the template aborted the run
	ActionSkipped  Action = "skipped"  // not processed because the run had aborted
)

// Step names one cascading cleanup operation
type Step string

const (
	StepDeregisterImage Step = "deregister-image"
	StepDeleteVersion   Step = "delete-version"
	StepDeleteSnapshot  Step = "delete-snapshot"
)

// StepResult is the outcome of one cleanup step on one resource
type StepResult struct {
	Step       Step
	ResourceID string
	Err        error
}

// Succeeded reports whether the step completed
func (r StepResult) Succeeded() bool {
	return r.Err == nil
}

// VersionOutcome collects the cleanup steps attempted for one pruned version
type VersionOutcome struct {
	Version int64
	ImageID string
	Steps   []StepResult

	// ReclaimedGiB is the size of the snapshots that were deleted
	ReclaimedGiB int64
}

// Failed returns the steps that did not complete
func (o VersionOutcome) Failed() []StepResult {
	return lo.Filter(o.Steps, func(r StepResult, _ int) bool {
		return !r.Succeeded()
	})
}

func (o *VersionOutcome) record(step Step, resourceID string, err error) {
	o.Steps = append(o.Steps, StepResult{Step: step, ResourceID: resourceID, Err: err})
}

// TemplateReport describes how one template was processed
type TemplateReport struct {
	TemplateID      string
	TemplateName    string
	Action          Action
	ImageID         string
	PreviousVersion int64
	CurrentVersion  int64
	Plan            PrunePlan
	Pruned          []VersionOutcome

	// Err is the fatal error of an aborted template, or the non-fatal error
	// that prevented listing versions to prune
	Err error
}

// Reclaimed returns the total snapshot storage freed for this template
func (r TemplateReport) Reclaimed() datasize.ByteSize {
	gib := lo.SumBy(r.Pruned, func(o VersionOutcome) int64 { return o.ReclaimedGiB })
	return datasize.ByteSize(gib) * datasize.GB
}

// CleanupFailures returns every failed cleanup step for this template
func (r TemplateReport) CleanupFailures() []StepResult {
	return lo.FlatMap(r.Pruned, func(o VersionOutcome, _ int) []StepResult {
		return o.Failed()
	})
}

// Report is the result of a full run
type Report struct {
	RunID     string
	DryRun    bool
	Outcome   Outcome
	Templates []TemplateReport
}

// LogValue renders a compact summary of the report
func (r *Report) LogValue() slog.Value {
	promoted := lo.CountBy(r.Templates, func(t TemplateReport) bool { return t.Action == ActionPromoted })
	pruned := lo.SumBy(r.Templates, func(t TemplateReport) int { return len(t.Pruned) })
	failures := lo.SumBy(r.Templates, func(t TemplateReport) int { return len(t.CleanupFailures()) })
	reclaimed := lo.SumBy(r.Templates, func(t TemplateReport) datasize.ByteSize { return t.Reclaimed() })

	attrs := []slog.Attr{
		slog.String("run_id", r.RunID),
		slog.String("status", r.Outcome.Status.String()),
		slog.Bool("dry_run", r.DryRun),
		slog.Int("templates", len(r.Templates)),
		slog.Int("promoted", promoted),
		slog.Int("versions_pruned", pruned),
		slog.Int("cleanup_failures", failures),
		slog.String("reclaimed", reclaimed.HumanReadable()),
	}
	if r.Outcome.Reason != nil {
		attrs = append(attrs, slog.String("reason", r.Outcome.Reason.Error()))
	}
	return slog.GroupValue(attrs...)
}
