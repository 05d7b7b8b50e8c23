// Command raven boots the engine: it loads a YAML config (optionally
// overlaid with CLI flags and the RAVEN_MUDLIB env var per §6), wires the
// Object Table/compiler/VFS/scheduler together, and either drives the
// accept-loop/tick-loop (the default) or drops into a local admin REPL
// (the "console" subcommand).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the process exit code §6 pins
// down: 1 for boot failure, 2 for a driver/mudlib version mismatch,
// anything else falls back to a generic failure code.
func exitCodeFor(err error) int {
	switch {
	case isBootError(err):
		return 1
	case isVersionError(err):
		return 2
	default:
		return 1
	}
}
