package images

import "errors"

var (
	// ErrNotFound is returned when no image matches a search pattern or id
	ErrNotFound = errors.New("image not found")

	// ErrInvalidPattern is returned when a search pattern is empty
	ErrInvalidPattern = errors.New("invalid image search pattern")
)
