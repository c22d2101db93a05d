package main

import (
	"os"

	"github.com/corpushq/connectors/internal/adapters/driving/cli"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
