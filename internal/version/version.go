// Package version reports build metadata injected with -ldflags, falling
// back to the VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the program name used in logs and the API title.
const Name = "phonecam"

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
	// BuildID is the build identifier, set via ldflags during build.
	BuildID = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildSettings(&info, bi.Settings)
	}
	return info
}

// fillFromBuildSettings replaces unset ldflags values with the toolchain's
// vcs.revision and vcs.time stamps.
func fillFromBuildSettings(info *Info, settings []debug.BuildSetting) {
	var dirty bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" && s.Value != "" {
				info.GitCommit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.BuildDate == "unknown" && s.Value != "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && info.GitCommit != "unknown" {
		info.GitCommit += "-dirty"
	}
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String returns a one-line description such as "phonecam 1.2.0 (a1b2c3d)".
func (i Info) String() string {
	if i.GitCommit == "" || i.GitCommit == "unknown" {
		return fmt.Sprintf("%s %s", Name, i.Version)
	}
	return fmt.Sprintf("%s %s (%s)", Name, i.Version, i.GitCommit)
}

// String returns the application version string.
func String() string {
	return Version
}
