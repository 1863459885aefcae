package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/datatalk/datatalk/internal/cli/dtalk"
	"github.com/datatalk/datatalk/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := dtalk.Run(ctx, os.Args[1:], dtalk.Options{
		Lookup: os.LookupEnv,
		Prompt: config.TerminalPrompt(os.Stdin, os.Stderr),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	stop()
	os.Exit(code)
}
