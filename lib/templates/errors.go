package templates

import "errors"

var (
	// ErrNotFound is returned when a template or version does not exist
	ErrNotFound = errors.New("launch template version not found")

	// ErrCreateFailed is returned when the provider did not confirm a new version
	ErrCreateFailed = errors.New("create launch template version failed")

	// ErrDeleteFailed is returned when the provider reports a version as not deleted
	ErrDeleteFailed = errors.New("delete launch template version failed")

	// ErrMissingSearchTag is returned when a template lacks the search tag
	ErrMissingSearchTag = errors.New("template has no " + SearchTagKey + " tag")
)
