package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimburion/docstream/pkg/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewRootCommand(cli.Options{
		Name:       "docstream",
		ConfigPath: os.Getenv("DOCSTREAM_CONFIG_FILE"),
		EnvPrefix:  "DOCSTREAM",
	}))
	stop()
	os.Exit(code)
}
