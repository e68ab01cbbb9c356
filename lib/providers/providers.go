package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/onkernel/amirotate/cmd/rotator/config"
	"github.com/onkernel/amirotate/lib/images"
	"github.com/onkernel/amirotate/lib/logger"
	"github.com/onkernel/amirotate/lib/otel"
	"github.com/onkernel/amirotate/lib/rotation"
	"github.com/onkernel/amirotate/lib/templates"
)

const telemetryShutdownTimeout = 5 * time.Second

// ProvideConfig provides the application configuration with command-line
// overrides applied
func ProvideConfig(overrides config.Overrides) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Apply(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ProvideLogger provides a structured logger. Records also go to OTLP when
// log export is enabled.
func ProvideLogger(cfg *config.Config, telemetry *otel.Provider) *slog.Logger {
	// Both values were checked by cfg.Validate
	level, _ := logger.ParseLevel(cfg.LogLevel)
	format, _ := logger.ParseFormat(cfg.LogFormat)

	log := logger.New(os.Stdout, format, level, telemetry.LogHandler())
	slog.SetDefault(log)

	if telemetry.Enabled() {
		log.Info("telemetry export enabled", "endpoint", cfg.OtelEndpoint, "logs", cfg.OtelLogs)
	}
	return log
}

// ProvideTelemetry provides the OpenTelemetry meter, tracer and log
// provider. The cleanup function flushes and shuts the exporters down.
func ProvideTelemetry(ctx context.Context, cfg *config.Config) (*otel.Provider, func(), error) {
	provider, err := otel.Init(ctx, otel.Config{
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: cfg.OtelServiceName,
		Logs:        cfg.OtelLogs,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to shut down telemetry: %v\n", err)
		}
	}
	return provider, cleanup, nil
}

// ProvideAWSConfig loads the default AWS configuration (environment, shared
// config files, or the execution role)
func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// ProvideEC2Client provides the EC2 API client
func ProvideEC2Client(awsCfg aws.Config) *ec2.Client {
	return ec2.NewFromConfig(awsCfg)
}

// ProvideImageManager provides the image manager
func ProvideImageManager(client *ec2.Client, cfg *config.Config) images.Manager {
	return images.NewManager(client, cfg.ImageOwners)
}

// ProvideTemplateManager provides the launch template manager
func ProvideTemplateManager(client *ec2.Client) templates.Manager {
	return templates.NewManager(client)
}

// ProvideRotationManager provides the rotation manager
func ProvideRotationManager(
	cfg *config.Config,
	imageManager images.Manager,
	templateManager templates.Manager,
	log *slog.Logger,
	telemetry *otel.Provider,
) (rotation.Manager, error) {
	return rotation.NewManager(cfg.Rotation(), imageManager, templateManager, log, telemetry.Meter, telemetry.Tracer)
}
