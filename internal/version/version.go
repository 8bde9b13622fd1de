// Package version reports build metadata. Release builds set the variables
// with -ldflags; other builds fall back to the module's embedded VCS stamp.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is one build's metadata.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// Current returns the running build's metadata.
func Current() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fillFromBuild(info, bi)
	}
	return info
}

// fillFromBuild replaces only the fields the linker left at their defaults.
func fillFromBuild(info Info, bi *debug.BuildInfo) Info {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "none":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.Date == "unknown":
			info.Date = s.Value
		}
	}
	return info
}

// String renders a single human-readable version line.
func String() string {
	return Current().String()
}

func (i Info) String() string {
	return fmt.Sprintf("soundboard %s (commit=%s, date=%s, go=%s)", i.Version, i.Commit, i.Date, i.Go)
}
