package rotation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/onkernel/amirotate/lib/images"
	"github.com/onkernel/amirotate/lib/logger"
	"github.com/onkernel/amirotate/lib/templates"
	"github.com/samber/lo"
)

// PrunePlan is the split of a template's versions into those kept and those
// eligible for deletion, for a given current version and retention count.
type PrunePlan struct {
	Current int64
	Keep    int
	// MaxEligible is the highest version number that may be deleted; 0 means none
	MaxEligible int64
}

// PlanPrune computes which versions are eligible for deletion.
//
// Versions 1..current-keep are eligible. Nothing is eligible while
// current < keep. The current version is never eligible, even with keep 0.
func PlanPrune(current int64, keep int) PrunePlan {
	plan := PrunePlan{Current: current, Keep: keep}
	if current < int64(keep) {
		return plan
	}
	plan.MaxEligible = current - int64(max(keep, 1))
	if plan.MaxEligible < 0 {
		plan.MaxEligible = 0
	}
	return plan
}

// Empty reports whether the plan deletes nothing
func (p PrunePlan) Empty() bool {
	return p.MaxEligible < 1
}

// Eligible reports whether version number v may be deleted under this plan
func (p PrunePlan) Eligible(v int64) bool {
	return v >= 1 && v <= p.MaxEligible && v != p.Current
}

// prune deletes every eligible version of a template together with its image
// and the image's snapshots. Failures are recorded per resource and never
// stop the loop.
func (m *manager) prune(ctx context.Context, tmpl templates.Template, plan PrunePlan) ([]VersionOutcome, error) {
	log := logger.FromContext(ctx)

	if plan.Empty() {
		log.InfoContext(ctx, "nothing to prune", "current_version", plan.Current, "keep", plan.Keep)
		return nil, nil
	}

	versions, err := m.templates.ListVersions(ctx, tmpl.ID, plan.MaxEligible)
	if err != nil {
		return nil, err
	}

	// A dry run has not moved the default yet, so an old default may still be listed
	versions = lo.Filter(versions, func(v templates.Version, _ int) bool {
		if v.IsDefault && !m.config.DryRun {
			log.WarnContext(ctx, "refusing to prune default version", "version", v.Number)
			return false
		}
		return plan.Eligible(v.Number)
	})

	log.InfoContext(ctx, "pruning versions",
		"count", len(versions), "max_eligible", plan.MaxEligible, "keep", plan.Keep)

	outcomes := make([]VersionOutcome, 0, len(versions))
	for _, v := range versions {
		outcomes = append(outcomes, m.pruneVersion(ctx, tmpl.ID, v))
	}
	return outcomes, nil
}

// pruneVersion runs the three cleanup steps for one version. Each step is
// attempted regardless of the others' results.
func (m *manager) pruneVersion(ctx context.Context, templateID string, v templates.Version) VersionOutcome {
	if m.config.DryRun {
		return m.planVersion(ctx, templateID, v)
	}

	log := logger.FromContext(ctx).With("version", v.Number, "image_id", v.ImageID)
	out := VersionOutcome{Version: v.Number, ImageID: v.ImageID}

	log.InfoContext(ctx, "deleting version with attached image and snapshots")

	// Snapshots must be read before the image is deregistered
	var snapshots []images.Snapshot
	var lookupErr error
	if v.ImageID == "" {
		lookupErr = ErrNoImage
	} else if img, err := m.images.GetImage(ctx, v.ImageID); err != nil {
		lookupErr = fmt.Errorf("look up snapshots of %s: %w", v.ImageID, err)
	} else {
		snapshots = img.Snapshots
	}

	// 1. deregister image
	if v.ImageID == "" {
		out.record(StepDeregisterImage, "", ErrNoImage)
		m.logStep(ctx, log, StepDeregisterImage, "", ErrNoImage)
	} else {
		err := m.images.DeregisterImage(ctx, v.ImageID)
		out.record(StepDeregisterImage, v.ImageID, err)
		m.logStep(ctx, log, StepDeregisterImage, v.ImageID, err)
	}

	// 2. delete the version record
	versionID := strconv.FormatInt(v.Number, 10)
	err := m.templates.DeleteVersion(ctx, templateID, v.Number)
	out.record(StepDeleteVersion, versionID, err)
	m.logStep(ctx, log, StepDeleteVersion, versionID, err)

	// 3. delete the snapshots, each independently
	if lookupErr != nil {
		out.record(StepDeleteSnapshot, v.ImageID, lookupErr)
		m.logStep(ctx, log, StepDeleteSnapshot, v.ImageID, lookupErr)
		return out
	}
	for _, s := range snapshots {
		err := m.images.DeleteSnapshot(ctx, s.ID)
		out.record(StepDeleteSnapshot, s.ID, err)
		m.logStep(ctx, log.With("device_name", s.DeviceName), StepDeleteSnapshot, s.ID, err)
		if err == nil {
			out.ReclaimedGiB += s.SizeGiB
		}
	}
	return out
}

// planVersion reports what pruneVersion would delete without deleting it
func (m *manager) planVersion(ctx context.Context, templateID string, v templates.Version) VersionOutcome {
	log := logger.FromContext(ctx).With("version", v.Number, "image_id", v.ImageID, "dry_run", true)
	out := VersionOutcome{Version: v.Number, ImageID: v.ImageID}

	out.record(StepDeregisterImage, v.ImageID, nil)
	out.record(StepDeleteVersion, strconv.FormatInt(v.Number, 10), nil)
	log.InfoContext(ctx, "would deregister image and delete version", "template_id", templateID)

	if v.ImageID == "" {
		return out
	}
	img, err := m.images.GetImage(ctx, v.ImageID)
	if err != nil {
		out.record(StepDeleteSnapshot, v.ImageID, fmt.Errorf("look up snapshots of %s: %w", v.ImageID, err))
		return out
	}
	for _, s := range img.Snapshots {
		out.record(StepDeleteSnapshot, s.ID, nil)
		out.ReclaimedGiB += s.SizeGiB
		log.InfoContext(ctx, "would delete snapshot", "snapshot_id", s.ID, "device_name", s.DeviceName, "size_gib", s.SizeGiB)
	}
	return out
}
