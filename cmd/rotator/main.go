package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Inside Lambda the runtime owns the process and its signals
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		if err := startLambda(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(initializeApp).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
