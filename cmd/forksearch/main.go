// forksearch races concurrent branches through maze files to any exit.
//
// Usage:
//
//	forksearch solve 'mazes/**/*.txt' [--max-tasks=N] [--timeout=30s]
//	forksearch history [--limit=20]
//	forksearch generate --rows=24 --cols=40 --seed=1 -o maze.txt
//	forksearch serve [--addr=127.0.0.1:8080]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
