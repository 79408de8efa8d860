/*
Package version reports build information for posematch.

Values are set via ldflags during release builds:

	go build -ldflags "-X github.com/khanglvm/posematch/internal/version.Version=v0.3.0 ..."

Builds without ldflags fall back to the VCS stamp the Go toolchain embeds,
and finally to "dev".
*/
package version

import (
	"runtime"
	"runtime/debug"
)

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the resolved build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
	Modified  bool   `json:"modified,omitempty"`
}

// Get resolves the build information, preferring ldflags values.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fromBuildInfo(info, bi)
	}
	return info
}

// fromBuildInfo fills fields still at their defaults from the VCS stamp.
func fromBuildInfo(info Info, bi *debug.BuildInfo) Info {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" {
				info.Commit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.Date == "unknown" && len(s.Value) >= 10 {
				info.Date = s.Value[:10]
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

// GetVersion returns version information as a formatted string
func GetVersion() string {
	i := Get()
	return FormatVersion(i.Version, i.Commit, i.Date)
}

// FormatVersion formats version components into a display string
func FormatVersion(version, commit, date string) string {
	if version == "dev" {
		return version + " (development build)"
	}
	return version + " (commit: " + commit + ", built: " + date + ")"
}
