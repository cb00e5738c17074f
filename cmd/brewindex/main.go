// Package main provides the entry point for the brewindex CLI.
package main

import (
	"os"

	"github.com/jcascante/brew-master-ai/cmd/brewindex/cmd"
	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// A held lease gets its own exit code so wrappers (cron, CI)
		// can tell "another run is active" from a real failure.
		if brewerrors.GetCode(err) == brewerrors.ErrCodeLeaseHeld {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
