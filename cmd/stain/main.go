package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/stain/cmd"
	"github.com/xkilldash9x/stain/internal/observability"
)

// osExit allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM)
	// for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)

	// Flush buffered log entries before exiting; os.Exit skips defers.
	observability.Sync()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Graceful shutdown initiated by Ctrl+C exits cleanly.
			osExit(0)
			return // Return facilitates testing when osExit is mocked.
		}
		osExit(1)
	}
}
