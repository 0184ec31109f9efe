package version

import "fmt"

// set by the build via -ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var FullVersion = fmt.Sprintf("%s build on %s from %s", Version, Date, Commit)
