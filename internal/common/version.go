package common

import "fmt"

// Build metadata for the sentio binary, stamped via -ldflags:
//
//	-X github.com/ternarybob/sentio/internal/common.Version=...
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the release version.
func GetVersion() string { return Version }

// GetBuild returns the build timestamp.
func GetBuild() string { return Build }

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string { return GitCommit }

// GetFullVersion renders version, build and commit in one line for the
// -version flag and startup log.
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}
