// Command soundboard runs the soundboard daemon and its control commands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/soundboard/internal/app"
)

func main() {
	os.Exit(run())
}

// run cancels the command on SIGINT, SIGTERM or SIGHUP so the daemon can
// release its keybinds and socket before exiting.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	return app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
