package rotation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/onkernel/amirotate/lib/logger"
	"github.com/onkernel/amirotate/lib/templates"
)

// promote creates a new version carrying the resolved image when the decision
// asks for one, then points the template's default at the resulting current
// version. The default is set even when nothing was created: pruning cannot
// remove a version that is still marked default.
func (m *manager) promote(ctx context.Context, tmpl templates.Template, d Decision) (int64, error) {
	log := logger.FromContext(ctx)
	current := d.Source.Number

	if d.Create {
		if m.config.DryRun {
			// the provider numbers new versions after the latest one
			current = max(tmpl.LatestVersion, d.Source.Number) + 1
			log.InfoContext(ctx, "would create new version",
				"image_id", d.ImageID, "source_version", d.Source.Number, "expected_version", current, "dry_run", true)
		} else {
			source := strconv.FormatInt(d.Source.Number, 10)
			v, err := m.templates.CreateVersion(ctx, tmpl.ID, source, d.ImageID)
			if err != nil {
				log.ErrorContext(ctx, "aborting due to an error while creating the new version", "error", err)
				return 0, fmt.Errorf("%w: %s: %w", ErrPromotion, tmpl.ID, err)
			}
			current = v.Number
			log.InfoContext(ctx, "created new version", "version", current, "image_id", d.ImageID, "source_version", source)
		}
	}

	if m.config.DryRun {
		log.InfoContext(ctx, "would set default version", "version", current, "dry_run", true)
		return current, nil
	}

	if err := m.templates.SetDefaultVersion(ctx, tmpl.ID, current); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrDefaultVersion, tmpl.ID, err)
	}
	log.InfoContext(ctx, "default version set", "version", current)
	return current, nil
}
