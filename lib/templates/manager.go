package templates

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	smithymiddleware "github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/samber/lo"
)

// EC2API is the subset of the EC2 client used by the template manager
type EC2API interface {
	DescribeLaunchTemplates(ctx context.Context, params *ec2.DescribeLaunchTemplatesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplatesOutput, error)
	DescribeLaunchTemplateVersions(ctx context.Context, params *ec2.DescribeLaunchTemplateVersionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplateVersionsOutput, error)
	CreateLaunchTemplateVersion(ctx context.Context, params *ec2.CreateLaunchTemplateVersionInput, optFns ...func(*ec2.Options)) (*ec2.CreateLaunchTemplateVersionOutput, error)
	ModifyLaunchTemplate(ctx context.Context, params *ec2.ModifyLaunchTemplateInput, optFns ...func(*ec2.Options)) (*ec2.ModifyLaunchTemplateOutput, error)
	DeleteLaunchTemplateVersions(ctx context.Context, params *ec2.DeleteLaunchTemplateVersionsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteLaunchTemplateVersionsOutput, error)
}

// Manager handles launch templates and their versions
type Manager interface {
	// ListParticipating returns every template carrying the search tag
	ListParticipating(ctx context.Context) ([]Template, error)

	// GetVersion returns one version; version may be a number or a pseudo-version
	GetVersion(ctx context.Context, templateID, version string) (*Version, error)

	// CreateVersion creates a version copied from sourceVersion with only the image replaced
	CreateVersion(ctx context.Context, templateID, sourceVersion, imageID string) (*Version, error)

	// SetDefaultVersion points the template's default at number
	SetDefaultVersion(ctx context.Context, templateID string, number int64) error

	// ListVersions returns all versions numbered at most maxVersion, ascending
	ListVersions(ctx context.Context, templateID string, maxVersion int64) ([]Version, error)

	// DeleteVersion removes one version from the template
	DeleteVersion(ctx context.Context, templateID string, number int64) error
}

type manager struct {
	client EC2API
}

// NewManager creates a new template manager
func NewManager(client EC2API) Manager {
	return &manager{client: client}
}

func (m *manager) ListParticipating(ctx context.Context) ([]Template, error) {
	input := &ec2.DescribeLaunchTemplatesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag-key"), Values: []string{SearchTagKey}},
		},
	}

	var out []Template
	paginator := ec2.NewDescribeLaunchTemplatesPaginator(m.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe launch templates: %w", err)
		}
		for _, lt := range page.LaunchTemplates {
			out = append(out, Template{
				ID:             aws.ToString(lt.LaunchTemplateId),
				Name:           aws.ToString(lt.LaunchTemplateName),
				Tags:           tagMap(lt.Tags),
				DefaultVersion: aws.ToInt64(lt.DefaultVersionNumber),
				LatestVersion:  aws.ToInt64(lt.LatestVersionNumber),
			})
		}
	}
	return out, nil
}

func (m *manager) GetVersion(ctx context.Context, templateID, version string) (*Version, error) {
	out, err := m.client.DescribeLaunchTemplateVersions(ctx, &ec2.DescribeLaunchTemplateVersionsInput{
		LaunchTemplateId: aws.String(templateID),
		Versions:         []string{version},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, templateID, version)
		}
		return nil, fmt.Errorf("describe version %s of %s: %w", version, templateID, err)
	}
	if len(out.LaunchTemplateVersions) == 0 {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, templateID, version)
	}

	v := fromEC2(out.LaunchTemplateVersions[0])
	return &v, nil
}

func (m *manager) CreateVersion(ctx context.Context, templateID, sourceVersion, imageID string) (*Version, error) {
	out, err := m.client.CreateLaunchTemplateVersion(ctx, &ec2.CreateLaunchTemplateVersionInput{
		LaunchTemplateId: aws.String(templateID),
		SourceVersion:    aws.String(sourceVersion),
		// Only ImageId is set; every other field is inherited from SourceVersion
		LaunchTemplateData: &ec2types.RequestLaunchTemplateData{
			ImageId: aws.String(imageID),
		},
		VersionDescription: aws.String("amirotate: " + imageID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateFailed, templateID, err)
	}
	if status, ok := httpStatus(out.ResultMetadata); ok && status != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status %d", ErrCreateFailed, templateID, status)
	}
	if out.LaunchTemplateVersion == nil || out.LaunchTemplateVersion.VersionNumber == nil {
		return nil, fmt.Errorf("%w: %s: response carried no version", ErrCreateFailed, templateID)
	}

	v := fromEC2(*out.LaunchTemplateVersion)
	if v.TemplateID == "" {
		v.TemplateID = templateID
	}
	return &v, nil
}

func (m *manager) SetDefaultVersion(ctx context.Context, templateID string, number int64) error {
	_, err := m.client.ModifyLaunchTemplate(ctx, &ec2.ModifyLaunchTemplateInput{
		LaunchTemplateId: aws.String(templateID),
		DefaultVersion:   aws.String(strconv.FormatInt(number, 10)),
	})
	if err != nil {
		return fmt.Errorf("set default version %d of %s: %w", number, templateID, err)
	}
	return nil
}

func (m *manager) ListVersions(ctx context.Context, templateID string, maxVersion int64) ([]Version, error) {
	if maxVersion < 1 {
		return nil, nil
	}

	input := &ec2.DescribeLaunchTemplateVersionsInput{
		LaunchTemplateId: aws.String(templateID),
		MaxVersion:       aws.String(strconv.FormatInt(maxVersion, 10)),
	}

	var out []Version
	paginator := ec2.NewDescribeLaunchTemplateVersionsPaginator(m.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe versions of %s: %w", templateID, err)
		}
		for _, v := range page.LaunchTemplateVersions {
			out = append(out, fromEC2(v))
		}
	}

	// MaxVersion is inclusive; drop anything outside 1..maxVersion regardless
	out = lo.Filter(out, func(v Version, _ int) bool {
		return v.Number >= 1 && v.Number <= maxVersion
	})
	slices.SortFunc(out, func(a, b Version) int {
		return cmp.Compare(a.Number, b.Number)
	})
	return out, nil
}

func (m *manager) DeleteVersion(ctx context.Context, templateID string, number int64) error {
	out, err := m.client.DeleteLaunchTemplateVersions(ctx, &ec2.DeleteLaunchTemplateVersionsInput{
		LaunchTemplateId: aws.String(templateID),
		Versions:         []string{strconv.FormatInt(number, 10)},
	})
	if err != nil {
		return fmt.Errorf("delete version %d of %s: %w", number, templateID, err)
	}

	if failed, ok := lo.Find(out.UnsuccessfullyDeletedLaunchTemplateVersions, func(item ec2types.DeleteLaunchTemplateVersionsResponseErrorItem) bool {
		return aws.ToInt64(item.VersionNumber) == number
	}); ok {
		reason := "unknown reason"
		if failed.ResponseError != nil {
			reason = fmt.Sprintf("%s: %s", failed.ResponseError.Code, aws.ToString(failed.ResponseError.Message))
		}
		return fmt.Errorf("%w: %d of %s: %s", ErrDeleteFailed, number, templateID, reason)
	}
	return nil
}

func fromEC2(v ec2types.LaunchTemplateVersion) Version {
	out := Version{
		TemplateID: aws.ToString(v.LaunchTemplateId),
		Number:     aws.ToInt64(v.VersionNumber),
		IsDefault:  aws.ToBool(v.DefaultVersion),
	}
	if v.LaunchTemplateData != nil {
		out.ImageID = aws.ToString(v.LaunchTemplateData.ImageId)
	}
	return out
}

func tagMap(tags []ec2types.Tag) map[string]string {
	return lo.SliceToMap(tags, func(t ec2types.Tag) (string, string) {
		return aws.ToString(t.Key), aws.ToString(t.Value)
	})
}

// httpStatus returns the raw HTTP status of a completed call when the
// transport recorded one.
func httpStatus(metadata smithymiddleware.Metadata) (int, bool) {
	resp, ok := awsmiddleware.GetRawResponse(metadata).(*smithyhttp.Response)
	if !ok || resp == nil || resp.Response == nil {
		return 0, false
	}
	return resp.StatusCode, true
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "InvalidLaunchTemplateId.NotFound",
		"InvalidLaunchTemplateId.VersionNotFound",
		"InvalidLaunchTemplateName.NotFoundException":
		return true
	}
	return false
}
