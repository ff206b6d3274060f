package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the released version of captain.
// This value can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/hrygo/captain/internal/version.Version=0.3.0"
var Version = "0.1.0"

// DevVersion is reported in dev and demo modes.
var DevVersion = Version + "-dev"

// GitCommit is the git commit hash at build time.
// Set via ldflags: -X github.com/hrygo/captain/internal/version.GitCommit=$(git rev-parse HEAD)
var GitCommit = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// GetCurrentVersion returns the version string to report for the given mode.
func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return DevVersion
	}
	return Version
}

// IsValid reports whether version is a well-formed semantic version
// (with or without the leading "v").
func IsValid(version string) bool {
	return semver.IsValid(canonical(version))
}

func canonical(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// String returns the version string with the short commit hash, if known.
func String() string {
	v := Version
	if GitCommit != "" && GitCommit != "unknown" {
		v = fmt.Sprintf("%s-%s", v, shortCommit())
	}
	return v
}

// StringFull returns the complete version information including build metadata.
// Versions overridden at build time with a non-semver value are flagged.
func StringFull() string {
	parts := []string{fmt.Sprintf("Version=%s", Version)}
	if !IsValid(Version) {
		parts[0] += " (not semver)"
	}
	if GitCommit != "" && GitCommit != "unknown" {
		parts = append(parts, fmt.Sprintf("Commit=%s", shortCommit()))
	}
	if BuildTime != "" && BuildTime != "unknown" {
		parts = append(parts, fmt.Sprintf("BuildTime=%s", BuildTime))
	}
	return strings.Join(parts, " ")
}

func shortCommit() string {
	if len(GitCommit) > 8 {
		return GitCommit[:8]
	}
	return GitCommit
}
