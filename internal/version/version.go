// Package version carries build metadata, set with -ldflags at build time:
//
//	go build -ldflags "-X github.com/MrSnakeDoc/stash/internal/version.Version=v0.1.0"
package version

import "runtime"

var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = "none"            // ex: abcd123
	BuildDate = "unknown"         // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version() // go version
)

// String is the one-line form used in logs and the CLI.
func String() string {
	return Version + " (commit=" + Commit + ", built=" + BuildDate + ", go=" + GoVersion + ")"
}
