// Package buildinfo carries the release identity stamped at link time:
//
//	go build -ldflags "-X github.com/m3rciful/funnelbot/core/buildinfo.Version=v1.4.0 \
//	  -X github.com/m3rciful/funnelbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/funnelbot/core/buildinfo.Date=$(date -u +%FT%TZ)"
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

func init() {
	if Commit != "local" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	// Builds without ldflags still get the VCS stamp from the toolchain.
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 7 {
				Commit = s.Value[:7]
			} else if s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String formats the identity for the --version flag.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
