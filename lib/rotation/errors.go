package rotation

import "errors"

var (
	// ErrCatalog is returned when participating templates cannot be listed
	ErrCatalog = errors.New("list participating templates")

	// ErrResolution is returned when a template's search pattern matches no image
	ErrResolution = errors.New("no image matches template search pattern")

	// ErrSourceVersion is returned when the version to compare against cannot be read
	ErrSourceVersion = errors.New("read source version")

	// ErrPromotion is returned when a new version could not be created
	ErrPromotion = errors.New("promote new version")

	// ErrDefaultVersion is returned when the default version could not be set
	ErrDefaultVersion = errors.New("set default version")

	// ErrNoImage is recorded for a pruned version that references no image
	ErrNoImage = errors.New("version references no image")

	// ErrInvalidConfig is returned by Config.Validate
	ErrInvalidConfig = errors.New("invalid rotation config")
)
