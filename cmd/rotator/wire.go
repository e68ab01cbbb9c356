//go:build wireinject

package main

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	"github.com/onkernel/amirotate/cmd/rotator/config"
	"github.com/onkernel/amirotate/lib/images"
	"github.com/onkernel/amirotate/lib/otel"
	"github.com/onkernel/amirotate/lib/providers"
	"github.com/onkernel/amirotate/lib/rotation"
	"github.com/onkernel/amirotate/lib/templates"
)

// application struct to hold initialized components
type application struct {
	Ctx             context.Context
	Logger          *slog.Logger
	Config          *config.Config
	Telemetry       *otel.Provider
	ImageManager    images.Manager
	TemplateManager templates.Manager
	Rotator         rotation.Manager
}

// initializeApp is the injector function
func initializeApp(ctx context.Context, overrides config.Overrides) (*application, func(), error) {
	panic(wire.Build(
		providers.ProvideConfig,
		providers.ProvideLogger,
		providers.ProvideTelemetry,
		providers.ProvideAWSConfig,
		providers.ProvideEC2Client,
		providers.ProvideImageManager,
		providers.ProvideTemplateManager,
		providers.ProvideRotationManager,
		wire.Struct(new(application), "*"),
	))
}
