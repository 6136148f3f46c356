// Package version carries build metadata, set with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// Info is the build description shown by -version and the debug index.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build info. When GitSHA was not stamped at link time it
// falls back to the VCS revision recorded by the Go toolchain.
func Get() Info {
	info := Info{
		Version:   Version,
		GitSHA:    GitSHA,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if info.GitSHA == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					info.GitSHA = s.Value
				case "vcs.time":
					if info.BuildTime == "unknown" {
						info.BuildTime = s.Value
					}
				}
			}
		}
	}
	return info
}

func (i Info) String() string {
	sha := i.GitSHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return fmt.Sprintf("mausd %s (%s, built %s, %s)", i.Version, sha, i.BuildTime, i.GoVersion)
}
