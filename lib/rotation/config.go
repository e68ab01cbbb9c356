package rotation

import (
	"fmt"

	"github.com/onkernel/amirotate/lib/templates"
)

// Config holds configuration for the rotation manager
type Config struct {
	// Keep is the number of most recent versions that always survive pruning
	Keep int

	// SourceVersion selects the version compared against the resolved image.
	// New versions are copied from exactly that version. $Default unless set
	// to $Latest.
	SourceVersion string

	// DryRun logs intended mutations without performing them
	DryRun bool

	// Parallelism is the number of templates processed at once
	Parallelism int
}

// DefaultConfig returns the default rotation configuration
func DefaultConfig() Config {
	return Config{
		Keep:          3,
		SourceVersion: templates.DefaultVersion,
		Parallelism:   1,
	}
}

// Validate reports the first invalid field
func (c Config) Validate() error {
	if c.Keep < 0 {
		return fmt.Errorf("%w: keep must be non-negative, got %d", ErrInvalidConfig, c.Keep)
	}
	if c.SourceVersion != templates.LatestVersion && c.SourceVersion != templates.DefaultVersion {
		return fmt.Errorf("%w: source version must be %s or %s, got %q",
			ErrInvalidConfig, templates.LatestVersion, templates.DefaultVersion, c.SourceVersion)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be at least 1, got %d", ErrInvalidConfig, c.Parallelism)
	}
	return nil
}
