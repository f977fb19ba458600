// Package version holds build metadata set with -ldflags.
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns the full version line printed by --version.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Banner returns the greeting shown when an interactive session starts.
func Banner(language string) string {
	return fmt.Sprintf("goprobe %s (%s). Type help for commands, exit to leave.", Version, language)
}
