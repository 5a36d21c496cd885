// Package main is the entry point for the client authentication service.
package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/clientauth/internal/auth/app"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	app.BuildVersion = version

	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
