package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/onkernel/amirotate/cmd/rotator/config"
	"github.com/onkernel/amirotate/lib/rotation"
)

// flusher pushes buffered telemetry before the execution environment freezes
type flusher interface {
	Flush(ctx context.Context) error
}

func startLambda() error {
	app, cleanup, err := initializeApp(context.Background(), config.Overrides{})
	if err != nil {
		return err
	}

	// Start never returns; exporters are shut down when the runtime sends SIGTERM
	lambda.StartWithOptions(
		newHandler(app.Rotator, app.Telemetry, app.Logger),
		lambda.WithEnableSIGTERM(cleanup),
	)
	return nil
}

// newHandler returns the Lambda handler. The event payload is ignored. The
// handler reports "done" or "error" as its result and never returns an error
// itself, so the invocation is not retried.
func newHandler(rotator rotation.Manager, telemetry flusher, log *slog.Logger) func(context.Context, json.RawMessage) (string, error) {
	return func(ctx context.Context, _ json.RawMessage) (string, error) {
		report := rotator.Run(ctx)

		if err := telemetry.Flush(ctx); err != nil {
			log.WarnContext(ctx, "failed to flush telemetry", "error", err)
		}
		return report.Outcome.Status.String(), nil
	}
}
