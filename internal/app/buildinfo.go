package app

import "fmt"

// Build information set through -ldflags by the release build.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// VersionString is what -version prints.
func VersionString() string {
	return fmt.Sprintf("tablegrab %s (commit %s, built %s)", BuildVersion, BuildCommit, BuildDate)
}
