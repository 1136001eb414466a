// Package version reports build metadata for the docstream binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const (
	Unknown            = "unknown"
	DevelopmentVersion = "dev"
)

// Set with -ldflags "-X github.com/nimburion/docstream/pkg/version.AppVersion=v1.2.3".
// Empty values fall back to the module build info.
var (
	AppVersion string
	GitCommit  string
	BuildTime  string
)

var readBuildInfo = debug.ReadBuildInfo

// Info is printed by `docstream version` and attached to traces.
type Info struct {
	Service   string `json:"service" yaml:"service"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	Modified  bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Current collects build metadata, preferring linker-provided values over
// what the Go toolchain embedded.
func Current(serviceName string) Info {
	info := Info{
		Service:   firstNonEmpty(serviceName, Unknown),
		Version:   strings.TrimSpace(AppVersion),
		Commit:    strings.TrimSpace(GitCommit),
		BuildTime: strings.TrimSpace(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := readBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	info.Version = firstNonEmpty(info.Version, DevelopmentVersion)
	info.Commit = firstNonEmpty(info.Commit, Unknown)
	info.BuildTime = firstNonEmpty(info.BuildTime, Unknown)
	return info
}

// ParseBuildTime parses BuildTime as RFC3339.
func (i Info) ParseBuildTime() (time.Time, bool) {
	if i.BuildTime == "" || i.BuildTime == Unknown {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, i.BuildTime)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// String returns a one-line summary with a shortened commit.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s %s (%s, %s, %s)", i.Service, i.Version, commit, i.GoVersion, i.Platform)
}

func firstNonEmpty(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
