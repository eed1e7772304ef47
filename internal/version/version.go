package version

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags "-X github.com/valpere/nebo/internal/version.Version=..."
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// AppName is shown in /version replies and the User-Agent header
const AppName = "Nebo"

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func GetInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s v%s\nCommit: %s\nBuilt: %s\nGo: %s",
		AppName, i.Version, i.GitCommit, i.BuildTime, i.GoVersion)
}

// Short returns "v<version> (<commit[:7]>)"
func (i Info) Short() string {
	commit := i.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("v%s (%s)", i.Version, commit)
}

// UserAgent identifies outbound provider requests
func (i Info) UserAgent() string {
	return fmt.Sprintf("%s/%s (+%s)", AppName, i.Version, runtime.GOOS)
}
