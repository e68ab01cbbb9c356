package rotation

import (
	"context"
	"fmt"

	"github.com/onkernel/amirotate/lib/logger"
	"github.com/onkernel/amirotate/lib/templates"
)

// Decision is the result of comparing a template against its newest image
type Decision struct {
	// ImageID is the newest image matching the template's search pattern
	ImageID string

	// Source is the version the image was compared against
	Source templates.Version

	// Create is true when Source does not use ImageID yet
	Create bool
}

// decide resolves the newest image for a template and compares it with the
// image of the configured source version. Resolution failure is fatal.
func (m *manager) decide(ctx context.Context, tmpl templates.Template) (Decision, error) {
	log := logger.FromContext(ctx)

	pattern, ok := tmpl.SearchPattern()
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s: %w", ErrResolution, tmpl.ID, templates.ErrMissingSearchTag)
	}

	imageID, err := m.images.ResolveLatest(ctx, pattern)
	if err != nil {
		log.ErrorContext(ctx, "can't find an image with this search string", "pattern", pattern, "error", err)
		return Decision{}, fmt.Errorf("%w: %s: %w", ErrResolution, pattern, err)
	}

	source, err := m.templates.GetVersion(ctx, tmpl.ID, m.config.SourceVersion)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %s of %s: %w", ErrSourceVersion, m.config.SourceVersion, tmpl.ID, err)
	}

	d := Decision{
		ImageID: imageID,
		Source:  *source,
		Create:  source.ImageID != imageID,
	}
	if d.Create {
		log.InfoContext(ctx, "not using the latest image, will create a new version",
			"current_image", source.ImageID, "latest_image", imageID, "source_version", source.Number)
	} else {
		log.InfoContext(ctx, "already using the latest image",
			"image_id", imageID, "source_version", source.Number)
	}
	return d, nil
}
