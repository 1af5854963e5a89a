package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

const goGitModule = "github.com/go-git/go-git/v5"

// readBuildInfo is swapped in tests
var readBuildInfo = debug.ReadBuildInfo

// Info contains version information
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	Commit    string `json:"commit"`
	// GoGit is the go-git module version linked into the binary
	GoGit     string `json:"go_git"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Get returns the current version info. Binaries built with `go install`
// carry no ldflags; their module version is used instead of "dev".
func Get() Info {
	info := Info{
		Version:   Version,
		BuildTime: BuildTime,
		Commit:    Commit,
		GoGit:     "unknown",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, dep := range bi.Deps {
		if dep.Path == goGitModule {
			info.GoGit = dep.Version
			if dep.Replace != nil {
				info.GoGit = dep.Replace.Version
			}
			break
		}
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("remotefetch %s (commit: %s, built: %s, go-git %s, %s %s/%s)",
		i.Version, i.Commit, i.BuildTime, i.GoGit, i.GoVersion, i.OS, i.Arch)
}

// Short returns the version alone, as used by --version
func Short() string {
	return Get().Version
}

// Full returns the one-line description printed by the version command
func Full() string {
	return Get().String()
}
