// Package version carries build information.
package version

import (
	"fmt"
	"runtime"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

// String describes the build for `worklog version`.
func String() string {
	return fmt.Sprintf("Worklog version %s\n  OS/Arch: %s/%s\n  Go version: %s",
		Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
