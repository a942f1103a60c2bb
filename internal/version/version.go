// Package version holds build metadata set through -ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Full returns the version line printed by the CLI
func Full() string {
	return fmt.Sprintf("momrec %s, commit %s, built at %s", Version, Commit, Date)
}
