package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hive-corporation/phishwatch/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRoot(version).ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrThreatsFound) {
			fmt.Fprintf(os.Stderr, "❌ FAIL: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		os.Exit(1)
	}
}
