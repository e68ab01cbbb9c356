// Package otel sets up OpenTelemetry metric, trace and log providers for a run.
package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentationName = "github.com/onkernel/amirotate"
	shutdownTimeout     = 5 * time.Second
)

// startRuntime begins Go runtime metric collection
var startRuntime = func(mp metric.MeterProvider) error {
	return runtime.Start(runtime.WithMeterProvider(mp))
}

// Config holds telemetry export settings
type Config struct {
	// Endpoint is the OTLP gRPC collector (host:port or URL). Empty disables export.
	Endpoint    string
	ServiceName string

	// Logs also exports log records over OTLP
	Logs bool
}

// Provider exposes the meter and tracer used by the application
type Provider struct {
	Meter  metric.Meter
	Tracer trace.Tracer

	logs     *sdklog.LoggerProvider
	flush    []func(context.Context) error
	shutdown []func(context.Context) error
}

// Enabled reports whether telemetry is exported
func (p *Provider) Enabled() bool {
	return len(p.shutdown) > 0
}

// LogHandler returns an slog handler that emits OTLP log records, or nil
// when log export is off.
func (p *Provider) LogHandler() slog.Handler {
	if p.logs == nil {
		return nil
	}
	return otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(p.logs))
}

// Init creates the providers. Without an endpoint all of them are no-ops.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return &Provider{
			Meter:  metricnoop.NewMeterProvider().Meter(instrumentationName),
			Tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
		}, nil
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	p := &Provider{}
	fail := func(err error) (*Provider, error) {
		sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		_ = p.Shutdown(sctx)
		return nil, err
	}

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if strings.Contains(cfg.Endpoint, "://") {
		metricOpts = []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpointURL(cfg.Endpoint)}
		traceOpts = []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(cfg.Endpoint)}
		logOpts = []otlploggrpc.Option{otlploggrpc.WithEndpointURL(cfg.Endpoint)}
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	p.Tracer = tracerProvider.Tracer(instrumentationName)
	p.register(tracerProvider.ForceFlush, tracerProvider.Shutdown)

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return fail(fmt.Errorf("create metric exporter: %w", err))
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	p.Meter = meterProvider.Meter(instrumentationName)
	p.register(meterProvider.ForceFlush, meterProvider.Shutdown)

	if cfg.Logs {
		logExporter, err := otlploggrpc.New(ctx, logOpts...)
		if err != nil {
			return fail(fmt.Errorf("create log exporter: %w", err))
		}
		p.setLogs(sdklog.NewBatchProcessor(logExporter), res)
	}

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	if err := startRuntime(meterProvider); err != nil {
		return fail(fmt.Errorf("start runtime metrics: %w", err))
	}

	return p, nil
}

func (p *Provider) setLogs(processor sdklog.Processor, res *resource.Resource) {
	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(processor),
		sdklog.WithResource(res),
	)
	p.register(p.logs.ForceFlush, p.logs.Shutdown)
}

func (p *Provider) register(flush, shutdown func(context.Context) error) {
	p.flush = append(p.flush, flush)
	p.shutdown = append(p.shutdown, shutdown)
}

// Flush exports everything recorded so far. Short-lived invocations call it
// before returning control to the runtime.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	for _, fn := range p.flush {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops exporters. Safe to call on a no-op provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}
