// Command pumpctl administers the pump selection record set: CSV bulk
// imports and change history queries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pumpcore/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
