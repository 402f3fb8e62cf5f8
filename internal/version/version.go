// Package version reports build information for gones6502
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"
)

var (
	// Set at build time via -ldflags "-X gones6502/internal/version.Version=..."
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version    string            `json:"version"`
	GitCommit  string            `json:"git_commit"`
	BuildTime  string            `json:"build_time"`
	GoVersion  string            `json:"go_version"`
	Platform   string            `json:"platform"`
	Arch       string            `json:"arch"`
	CGOEnabled bool              `json:"cgo_enabled"`
	Tags       string            `json:"tags,omitempty"` // e.g. "headless"
	Deps       map[string]string `json:"deps,omitempty"` // Module path -> version
}

// GetBuildInfo returns build information, filling gaps from the VCS stamps
// the go tool embeds
func GetBuildInfo() BuildInfo {
	bi := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	applySettings(&bi, info.Settings)

	bi.Deps = make(map[string]string, len(info.Deps))
	for _, dep := range info.Deps {
		bi.Deps[dep.Path] = dep.Version
	}
	return bi
}

func applySettings(bi *BuildInfo, settings []debug.BuildSetting) {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if bi.GitCommit == "unknown" {
				bi.GitCommit = setting.Value
			}
		case "vcs.time":
			if bi.BuildTime == "unknown" {
				bi.BuildTime = setting.Value
			}
		case "CGO_ENABLED":
			bi.CGOEnabled = setting.Value == "1"
		case "-tags":
			bi.Tags = setting.Value
		}
	}
}

// ShortCommit returns the first 7 characters of the commit
func (bi BuildInfo) ShortCommit() string {
	if len(bi.GitCommit) > 7 {
		return bi.GitCommit[:7]
	}
	return bi.GitCommit
}

// GetVersion returns a simple version string
func GetVersion() string {
	if Version == "dev" {
		if c := GetBuildInfo().ShortCommit(); c != "unknown" {
			return "dev-" + c
		}
	}
	return Version
}

// String returns a one-line description
func (bi BuildInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gones6502 version %s", bi.Version)

	if bi.GitCommit != "unknown" {
		fmt.Fprintf(&b, " (commit %s)", bi.ShortCommit())
	}

	if bi.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, bi.BuildTime); err == nil {
			fmt.Fprintf(&b, " built on %s", t.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Fprintf(&b, " built on %s", bi.BuildTime)
		}
	}

	fmt.Fprintf(&b, " with %s for %s/%s", bi.GoVersion, bi.Platform, bi.Arch)
	if bi.Tags != "" {
		fmt.Fprintf(&b, " [%s]", bi.Tags)
	}
	return b.String()
}

// Fprint writes build information including dependency versions
func (bi BuildInfo) Fprint(w io.Writer) {
	fmt.Fprintf(w, "gones6502 - 6502 CPU emulator\n")
	fmt.Fprintf(w, "Version:     %s\n", bi.Version)
	fmt.Fprintf(w, "Git Commit:  %s\n", bi.GitCommit)
	fmt.Fprintf(w, "Build Time:  %s\n", bi.BuildTime)
	fmt.Fprintf(w, "Go Version:  %s\n", bi.GoVersion)
	fmt.Fprintf(w, "Platform:    %s/%s\n", bi.Platform, bi.Arch)
	fmt.Fprintf(w, "CGO Enabled: %t\n", bi.CGOEnabled)

	if len(bi.Deps) == 0 {
		return
	}
	paths := make([]string, 0, len(bi.Deps))
	for p := range bi.Deps {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	fmt.Fprintf(w, "Dependencies:\n")
	for _, p := range paths {
		fmt.Fprintf(w, "  %s %s\n", p, bi.Deps[p])
	}
}
