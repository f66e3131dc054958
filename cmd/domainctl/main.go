package main

import (
	"fmt"
	"os"

	"github.com/danmuck/domainkit/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "domainctl: %v\n", err)
		os.Exit(1)
	}
}
