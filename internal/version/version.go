// Package version carries build metadata stamped in with -ldflags -X.
package version

import "fmt"

var (
	// Version is the current navigator release
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String is the one-line banner logged at startup.
func String() string {
	sha := GitSHA
	if len(sha) > 8 {
		sha = sha[:8]
	}
	return fmt.Sprintf("osgar-navigator %s (%s, built %s)", Version, sha, BuildTime)
}
