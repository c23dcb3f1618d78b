// Package version resolves the build version of the modelsync binary.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	defaultModule = "pkt.systems/modelsync"
	// Name is the product name used in the User-Agent header.
	Name    = "modelsync"
	unknown = "v0.0.0-unknown"
)

// buildVersion is set via -ldflags "-X pkt.systems/modelsync/internal/version.buildVersion=...".
var buildVersion = ""

// Current returns the best available version string (without dirty suffix).
func Current() string {
	return currentFromBuildInfo(false)
}

// CurrentWithDirty returns the best available version string (including dirty suffix when available).
func CurrentWithDirty() string {
	return currentFromBuildInfo(true)
}

// UserAgent returns "modelsync/<version>".
func UserAgent() string {
	return Name + "/" + Current()
}

// Module returns the module path from build info when available.
func Module() string {
	info, ok := debug.ReadBuildInfo()
	if ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

func currentFromBuildInfo(includeDirty bool) string {
	if strings.TrimSpace(buildVersion) != "" {
		return normalizeVersion(buildVersion, includeDirty)
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return unknown
	}
	if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
		return normalizeVersion(v, includeDirty)
	}
	if v := pseudoFromBuildInfo(info, includeDirty); v != "" {
		return v
	}
	return unknown
}

func normalizeVersion(v string, includeDirty bool) string {
	value := strings.TrimSpace(v)
	if includeDirty {
		return value
	}
	return strings.TrimSuffix(value, "+dirty")
}

// pseudoFromBuildInfo builds a Go pseudo-version from VCS stamps.
func pseudoFromBuildInfo(info *debug.BuildInfo, includeDirty bool) string {
	if info == nil {
		return ""
	}
	settings := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	revision := settings["vcs.revision"]
	stamp, err := time.Parse(time.RFC3339, settings["vcs.time"])
	if revision == "" || err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	ver := "v0.0.0-" + stamp.UTC().Format("20060102150405") + "-" + revision
	if includeDirty && settings["vcs.modified"] == "true" {
		ver += "+dirty"
	}
	return ver
}
