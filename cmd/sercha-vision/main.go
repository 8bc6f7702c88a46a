// Command sercha-vision keeps an image similarity index in sync with a
// Google Drive collection.
package main

import (
	"os"

	"github.com/custodia-labs/sercha-vision/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
