package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set through -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   GetVersion(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersion prefers the ldflags version and falls back to the module version
// recorded in the binary.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return "dev"
}

func GetShortVersion() string {
	if len(GitCommit) >= 7 {
		return fmt.Sprintf("%s-%s", GetVersion(), GitCommit[:7])
	}

	return GetVersion()
}
