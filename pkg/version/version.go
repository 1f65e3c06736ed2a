// Package version reports the build of the running kfold binary.
//
// [Version] is set at link time. Without it, the VCS revision recorded by the
// Go toolchain is used, so snapshots written by development builds can still
// be traced to a commit.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version string // Set via ldflags.

	Revision  = getRevision()
	GoVersion = runtime.Version()
	GoOS      = runtime.GOOS
	GoArch    = runtime.GOARCH
)

// GetVersion returns the release version, or the revision for untagged
// builds.
func GetVersion() string {
	if Version != "" {
		return Version
	}

	return Revision
}

// String summarizes the build on one line.
func String() string {
	return fmt.Sprintf("kfold %s (revision %s, %s, %s/%s)", GetVersion(), Revision, GoVersion, GoOS, GoArch)
}

func getRevision() string {
	rev := "unknown"

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return rev
	}

	modified := false

	for _, v := range buildInfo.Settings {
		switch v.Key {
		case "vcs.revision":
			rev = v.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}

		case "vcs.modified":
			modified = v.Value == "true"
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
