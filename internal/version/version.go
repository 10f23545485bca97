// Package version holds build information injected with -ldflags, e.g.
//
//	-X github.com/dhjs0000/QERC/internal/version.Version=v1.2.0
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String returns a one-line summary, e.g. "dev (commit: unknown, built: unknown, go1.25.0)".
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}
