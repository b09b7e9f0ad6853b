// Package config loads the VitalGuard configuration file and carries the
// build information stamped in at link time.
package config

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Link-time stamps, set with
// -ldflags "-X github.com/good-yellow-bee/vitalguard/pkg/config.Version=v1.2.0".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"builtAt"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// CurrentBuild returns the link-time stamps. A binary built without them
// falls back to the VCS revision and commit time the toolchain embeds.
func CurrentBuild() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		BuiltAt:   BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		b.fillFromVCS(info.Settings)
	}
	return b
}

func (b *Build) fillFromVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" && s.Value != "" {
				b.Commit = s.Value[:min(len(s.Value), 12)]
			}
		case "vcs.time":
			if b.BuiltAt == "unknown" && s.Value != "" {
				b.BuiltAt = s.Value
			}
		}
	}
}

// String renders the build for `version` commands, e.g.
// "vitalguard v1.2.0 (3f2c9a1b7d4e, 2026-03-01T08:00:00Z, go1.24.7 linux/amd64)".
func (b Build) String() string {
	return fmt.Sprintf("vitalguard %s (%s, %s, %s %s)", b.Version, b.Commit, b.BuiltAt, b.GoVersion, b.Platform)
}
