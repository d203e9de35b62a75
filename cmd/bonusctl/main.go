package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/compensation/cmd/bonusctl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(cli.DefaultRuntime).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bonusctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
