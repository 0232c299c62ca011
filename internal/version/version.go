// Package version reports the wifiprov build version.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version and Commit may be set at build time:
//
//	go build -ldflags="-X github.com/muurk/wifiprov/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/wifiprov/internal/version.Commit=abc1234" ./cmd/wifiprov
//
// Otherwise they come from the VCS stamp in the build info, falling back to
// a dev version.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		info, ok := debug.ReadBuildInfo()
		if ok {
			Version, Commit = fromBuildInfo(info, Version, Commit)
		}
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo fills in whichever of version and commit is empty from the
// VCS settings in info
func fromBuildInfo(info *debug.BuildInfo, version, commit string) (string, string) {
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if commit == "" {
		if rev := settings["vcs.revision"]; rev != "" {
			if len(rev) > 7 {
				rev = rev[:7]
			}
			commit = rev
			if settings["vcs.modified"] == "true" {
				commit += "-dirty"
			}
		}
	}

	// Module versions of "(devel)" carry no information
	if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	if version == "" {
		if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
			version = "dev-" + t.Format("20060102")
		}
	}
	return version, commit
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
