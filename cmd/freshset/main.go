// Command freshset builds fresh/rotten produce datasets, manages hosted
// fine-tuning jobs and trains a local freshness classifier.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mesh-intelligence/freshset/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
