// Package version reports how the folio binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags "-X github.com/conneroisu/folio/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const unknown = "unknown"

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"gitCommit" yaml:"gitCommit"`
	BuildTime time.Time `json:"buildTime" yaml:"buildTime"`
	GoVersion string    `json:"goVersion" yaml:"goVersion"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty" yaml:"dirty"`
}

// Get collects the build information. Values not set through ldflags are
// taken from the module build info when available.
func Get() Info {
	return Info{
		Version:   version(),
		GitCommit: commit(),
		BuildTime: parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     setting("vcs.modified") == "true",
	}
}

// Short is the one-line form printed by `folio version --short`.
func (i Info) Short() string {
	if i.GitCommit == unknown || len(i.GitCommit) < 7 {
		return i.Version
	}
	if i.Version == "dev" {
		return "dev-" + i.GitCommit[:7]
	}
	return fmt.Sprintf("%s (%s)", i.Version, i.GitCommit[:7])
}

// String renders every known field on its own line.
func (i Info) String() string {
	lines := []string{"Version: " + i.Version}
	if i.GitCommit != unknown {
		commit := i.GitCommit
		if i.Dirty {
			commit += " (dirty)"
		}
		lines = append(lines, "Commit: "+commit)
	}
	if !i.BuildTime.IsZero() {
		lines = append(lines, "Built: "+i.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+i.GoVersion, "Platform: "+i.Platform)
	return strings.Join(lines, "\n")
}

// IsRelease reports whether the binary carries a release version.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !strings.HasPrefix(i.Version, "dev-")
}

func version() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	if rev := setting("vcs.revision"); len(rev) >= 7 {
		return "dev-" + rev[:7]
	}
	return "dev"
}

func commit() string {
	if GitCommit != "" && GitCommit != unknown {
		return GitCommit
	}
	if rev := setting("vcs.revision"); rev != "" {
		return rev
	}
	return unknown
}

func setting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime returns the zero time when s matches none of timeLayouts.
func parseTime(s string) time.Time {
	if s == "" || s == unknown {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
