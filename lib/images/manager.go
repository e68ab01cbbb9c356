package images

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/onkernel/amirotate/lib/logger"
	"github.com/samber/lo"
)

// EC2API is the subset of the EC2 client used by the image manager
type EC2API interface {
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	DeregisterImage(ctx context.Context, params *ec2.DeregisterImageInput, optFns ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error)
	DeleteSnapshot(ctx context.Context, params *ec2.DeleteSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error)
}

// Manager handles machine image lookup and removal
type Manager interface {
	// ResolveLatest returns the id of the newest image whose name matches pattern.
	// A failed query and an empty result both yield ErrNotFound.
	ResolveLatest(ctx context.Context, pattern string) (string, error)

	// GetImage returns an image with its backing snapshots
	GetImage(ctx context.Context, id string) (*Image, error)

	// DeregisterImage removes an image from the catalog
	DeregisterImage(ctx context.Context, id string) error

	// DeleteSnapshot deletes a block-device snapshot
	DeleteSnapshot(ctx context.Context, id string) error
}

type manager struct {
	client EC2API
	owners []string
}

// NewManager creates a new image manager. When owners is non-empty, pattern
// searches are restricted to images owned by those accounts/aliases.
func NewManager(client EC2API, owners []string) Manager {
	return &manager{
		client: client,
		owners: owners,
	}
}

func (m *manager) ResolveLatest(ctx context.Context, pattern string) (string, error) {
	log := logger.FromContext(ctx)

	if strings.TrimSpace(pattern) == "" {
		return "", fmt.Errorf("%w: %w", ErrNotFound, ErrInvalidPattern)
	}

	found, err := m.search(ctx, pattern)
	if err != nil {
		log.WarnContext(ctx, "image search failed", "pattern", pattern, "error", err, "code", errorCode(err))
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, pattern, err)
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, pattern)
	}

	// CreationDate is ISO-8601, so string order is chronological order
	latest := lo.MaxBy(found, func(a, b Image) bool {
		return a.CreationDate > b.CreationDate
	})

	log.DebugContext(ctx, "resolved latest image", "pattern", pattern, "image_id", latest.ID, "candidates", len(found))
	return latest.ID, nil
}

func (m *manager) search(ctx context.Context, pattern string) ([]Image, error) {
	input := &ec2.DescribeImagesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{pattern}},
		},
	}
	if len(m.owners) > 0 {
		input.Owners = m.owners
	}

	var found []Image
	paginator := ec2.NewDescribeImagesPaginator(m.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		found = append(found, lo.Map(page.Images, func(img ec2types.Image, _ int) Image {
			return fromEC2(img)
		})...)
	}
	return found, nil
}

func (m *manager) GetImage(ctx context.Context, id string) (*Image, error) {
	out, err := m.client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("describe image %s: %w", id, err)
	}
	if len(out.Images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	img := fromEC2(out.Images[0])
	return &img, nil
}

func (m *manager) DeregisterImage(ctx context.Context, id string) error {
	_, err := m.client.DeregisterImage(ctx, &ec2.DeregisterImageInput{
		ImageId: aws.String(id),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("deregister image %s: %w", id, err)
	}
	return nil
}

func (m *manager) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := m.client.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

func fromEC2(img ec2types.Image) Image {
	out := Image{
		ID:           aws.ToString(img.ImageId),
		Name:         aws.ToString(img.Name),
		CreationDate: aws.ToString(img.CreationDate),
	}
	for _, bdm := range img.BlockDeviceMappings {
		if bdm.Ebs == nil || aws.ToString(bdm.Ebs.SnapshotId) == "" {
			continue
		}
		out.Snapshots = append(out.Snapshots, Snapshot{
			ID:         aws.ToString(bdm.Ebs.SnapshotId),
			DeviceName: aws.ToString(bdm.DeviceName),
			SizeGiB:    int64(aws.ToInt32(bdm.Ebs.VolumeSize)),
		})
	}
	return out
}

func isNotFound(err error) bool {
	switch errorCode(err) {
	case "InvalidAMIID.NotFound", "InvalidAMIID.Unavailable", "InvalidAMIID.Malformed":
		return true
	}
	return false
}

// errorCode returns the provider error code carried by err, if any.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
