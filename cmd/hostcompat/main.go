// Command hostcompat boots the compatibility core against a scripted host
// and reports what it did.
//
// Usage:
//
//	hostcompat run scenario.lua            boot, run the scenario, print diagnostics
//	hostcompat run --json scenario.lua     same, as JSON
//	hostcompat run --watch scenario.lua    re-run whenever the script changes
//	hostcompat tables --generation 12      show the event table for a generation
//	hostcompat version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
