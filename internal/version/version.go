// Package version holds build information injected with -ldflags, e.g.
//
//	-X github.com/jmylchreest/gh-please/internal/version.Version=1.4.0
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the structured form of the build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns the build information of the running binary.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the one-line version banner.
func String() string {
	info := GetInfo()
	if info.Commit == "unknown" || info.Date == "unknown" {
		return fmt.Sprintf("gh-please %s (%s, %s)", info.Version, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("gh-please %s (commit %s, built %s, %s, %s)",
		info.Version, shortCommit(info.Commit), info.Date, info.GoVersion, info.Platform)
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
