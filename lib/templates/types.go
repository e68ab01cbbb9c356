package templates

// SearchTagKey marks a launch template as participating in rotation. Its
// value is the image-name pattern used to find the newest image.
const SearchTagKey = "ami-search-string"

// Pseudo-versions understood by the provider
const (
	LatestVersion  = "$Latest"
	DefaultVersion = "$Default"
)

// Template represents a launch template taking part in rotation
type Template struct {
	ID             string
	Name           string
	Tags           map[string]string
	DefaultVersion int64
	LatestVersion  int64
}

// SearchPattern returns the value of the search tag
func (t Template) SearchPattern() (string, bool) {
	v, ok := t.Tags[SearchTagKey]
	return v, ok
}

// Version is one numbered launch configuration of a template
type Version struct {
	TemplateID string
	Number     int64
	ImageID    string
	IsDefault  bool
}
