package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rushsh/rush/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewRootCommand(version))
	stop()
	os.Exit(code)
}
