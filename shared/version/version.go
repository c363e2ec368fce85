// Package version reports the build identity of the dispatchd binary,
// the same app.Version source node binaries pull from.
package version

import "fmt"

// These are overridden at build time via -ldflags, matching the
// convention of stamping VCS metadata into the binary
// without checking generated version strings into source control.
var (
	gitCommit = "unknown"
	buildDate = "unknown"
)

// GetVersion returns a single-line, human-readable version string
// suitable for app.Version and --version output.
func GetVersion() string {
	return fmt.Sprintf("dispatchd/%s (built %s)", gitCommit, buildDate)
}
