package main

import (
	"os"

	"github.com/metoffice/owa-checker/internal/cli"
)

// version is set by goreleaser ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
