// Package version carries build-time version metadata for the cmd tools.
package version

// Set via -ldflags at build time, e.g.
// -ldflags "-X detlab/internal/version.Version=1.2.0".
var (
	Version = "0.1.0"

	BuildTime = "unknown"

	GitCommit = "unknown"
)
