package main

import (
	"log/slog"
	"os"

	"github.com/ricardolpd/serverless/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}
