package rotation

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/onkernel/amirotate/lib/images"
	"github.com/onkernel/amirotate/lib/templates"
)

// fakeCloud models a small EC2 account: images with snapshots and launch
// templates with numbered versions. It implements images.Manager and
// templates.Manager and records every mutating call.
type fakeCloud struct {
	mu sync.Mutex

	images    map[string]*fakeImage
	templates []*fakeTemplate

	// fail maps a call key (see key helpers below) to the error it returns
	fail map[string]error

	mutations []string
}

type fakeImage struct {
	id        string
	pattern   string
	created   string
	snapshots []images.Snapshot
}

type fakeTemplate struct {
	id       string
	name     string
	tags     map[string]string
	versions map[int64]*fakeVersion
	def      int64
	latest   int64
}

type fakeVersion struct {
	number       int64
	imageID      string
	instanceType string
	copiedFrom   int64
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		images: make(map[string]*fakeImage),
		fail:   make(map[string]error),
	}
}

func (c *fakeCloud) addImage(id, pattern, created string, snapshots ...string) {
	img := &fakeImage{id: id, pattern: pattern, created: created}
	for _, s := range snapshots {
		img.snapshots = append(img.snapshots, images.Snapshot{ID: s, SizeGiB: 8})
	}
	c.images[id] = img
}

// addTemplate creates a template whose versions 1..n use imageIDs[i-1].
// The last version is both latest and default.
func (c *fakeCloud) addTemplate(id, pattern string, imageIDs ...string) *fakeTemplate {
	t := &fakeTemplate{
		id:       id,
		name:     "name-" + id,
		tags:     map[string]string{templates.SearchTagKey: pattern, "team": "infra"},
		versions: make(map[int64]*fakeVersion),
	}
	for i, img := range imageIDs {
		n := int64(i + 1)
		t.versions[n] = &fakeVersion{number: n, imageID: img, instanceType: "t3.micro"}
	}
	t.latest = int64(len(imageIDs))
	t.def = t.latest
	c.templates = append(c.templates, t)
	return t
}

func (c *fakeCloud) template(id string) *fakeTemplate {
	for _, t := range c.templates {
		if t.id == id {
			return t
		}
	}
	return nil
}

func (c *fakeCloud) versionNumbers(templateID string) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int64
	for n := range c.template(templateID).versions {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (c *fakeCloud) mutated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.mutations)
}

func (c *fakeCloud) failWith(key string, err error) {
	c.fail[key] = err
}

func (c *fakeCloud) record(format string, args ...any) {
	c.mutations = append(c.mutations, fmt.Sprintf(format, args...))
}

// images.Manager

func (c *fakeCloud) ResolveLatest(ctx context.Context, pattern string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["resolve "+pattern]; err != nil {
		return "", fmt.Errorf("%w: %v", images.ErrNotFound, err)
	}
	var latest *fakeImage
	for _, img := range c.images {
		if img.pattern != pattern {
			continue
		}
		if latest == nil || img.created > latest.created {
			latest = img
		}
	}
	if latest == nil {
		return "", fmt.Errorf("%w: %s", images.ErrNotFound, pattern)
	}
	return latest.id, nil
}

func (c *fakeCloud) GetImage(ctx context.Context, id string) (*images.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["get-image "+id]; err != nil {
		return nil, err
	}
	img, ok := c.images[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", images.ErrNotFound, id)
	}
	return &images.Image{ID: img.id, CreationDate: img.created, Snapshots: slices.Clone(img.snapshots)}, nil
}

func (c *fakeCloud) DeregisterImage(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("deregister %s", id)
	if err := c.fail["deregister "+id]; err != nil {
		return err
	}
	if _, ok := c.images[id]; !ok {
		return fmt.Errorf("%w: %s", images.ErrNotFound, id)
	}
	delete(c.images, id)
	return nil
}

func (c *fakeCloud) DeleteSnapshot(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("delete-snapshot %s", id)
	return c.fail["delete-snapshot "+id]
}

// templates.Manager

func (c *fakeCloud) ListParticipating(ctx context.Context) ([]templates.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["list-templates"]; err != nil {
		return nil, err
	}
	var out []templates.Template
	for _, t := range c.templates {
		if _, ok := t.tags[templates.SearchTagKey]; !ok {
			continue
		}
		out = append(out, templates.Template{
			ID:             t.id,
			Name:           t.name,
			Tags:           t.tags,
			DefaultVersion: t.def,
			LatestVersion:  t.latest,
		})
	}
	return out, nil
}

func (c *fakeCloud) GetVersion(ctx context.Context, templateID, version string) (*templates.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.template(templateID)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", templates.ErrNotFound, templateID)
	}
	v, ok := t.versions[t.resolve(version)]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", templates.ErrNotFound, templateID, version)
	}
	return t.toVersion(v), nil
}

func (c *fakeCloud) CreateVersion(ctx context.Context, templateID, sourceVersion, imageID string) (*templates.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("create %s %s", templateID, imageID)
	if err := c.fail["create "+templateID]; err != nil {
		return nil, err
	}
	t := c.template(templateID)
	src, ok := t.versions[t.resolve(sourceVersion)]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", templates.ErrNotFound, templateID, sourceVersion)
	}
	t.latest++
	v := &fakeVersion{number: t.latest, imageID: imageID, instanceType: src.instanceType, copiedFrom: src.number}
	t.versions[v.number] = v
	return t.toVersion(v), nil
}

func (c *fakeCloud) SetDefaultVersion(ctx context.Context, templateID string, number int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("set-default %s %d", templateID, number)
	if err := c.fail["set-default "+templateID]; err != nil {
		return err
	}
	c.template(templateID).def = number
	return nil
}

func (c *fakeCloud) ListVersions(ctx context.Context, templateID string, maxVersion int64) ([]templates.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail["list-versions "+templateID]; err != nil {
		return nil, err
	}
	t := c.template(templateID)
	var out []templates.Version
	for n, v := range t.versions {
		if n <= maxVersion {
			out = append(out, *t.toVersion(v))
		}
	}
	slices.SortFunc(out, func(a, b templates.Version) int { return cmp.Compare(a.Number, b.Number) })
	return out, nil
}

func (c *fakeCloud) DeleteVersion(ctx context.Context, templateID string, number int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("delete-version %s %d", templateID, number)
	if err := c.fail[fmt.Sprintf("delete-version %s %d", templateID, number)]; err != nil {
		return err
	}
	t := c.template(templateID)
	if number == t.def {
		return fmt.Errorf("cannot delete default version %d", number)
	}
	delete(t.versions, number)
	return nil
}

// resolve maps a pseudo-version or version number to a version number
func (t *fakeTemplate) resolve(version string) int64 {
	switch version {
	case templates.LatestVersion:
		return t.latest
	case templates.DefaultVersion:
		return t.def
	}
	n, _ := strconv.ParseInt(version, 10, 64)
	return n
}

func (t *fakeTemplate) toVersion(v *fakeVersion) *templates.Version {
	return &templates.Version{
		TemplateID: t.id,
		Number:     v.number,
		ImageID:    v.imageID,
		IsDefault:  v.number == t.def,
	}
}
