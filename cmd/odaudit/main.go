// Package main provides the entrypoint for the odaudit CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/odaudit/odaudit/internal/cli"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.Run(ctx, &cli.App{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Version: Version,
	}, os.Args[1:])

	stop()
	os.Exit(code)
}
