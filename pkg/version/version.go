// Package version carries the build identity of the speciespool binary.
// The variables are overridden at link time:
//
//	go build -ldflags "-X github.com/Sumatoshi-tech/speciespool/pkg/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime/debug"
)

// Build identity, set with -ldflags -X.
var (
	Version = "dev"
	Commit  = "<unknown>"
	Date    = "<unknown>"
)

// InitBinaryVersion fills Version and Commit from the embedded module build
// info when the binary was built without link-time overrides.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "<unknown>" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "<unknown>" {
				Date = s.Value
			}
		}
	}
}

// String formats the build identity for display.
func String() string {
	return fmt.Sprintf("speciespool %s (commit: %s, built: %s)", Version, Commit, Date)
}
