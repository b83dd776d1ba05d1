// Package version exposes the application version derived from build metadata.
//
// Priority: -ldflags override > VCS info from debug.BuildInfo > "dev" fallback.
//
// Usage:
//
//	version.Commit()  // "a3f8c2d1" or "dev"
//	version.Dirty()   // true when built from a modified tree
//	version.Full()    // "notifyd/a3f8c2d1" or "notifyd/dev"
package version

import (
	"runtime/debug"
	"sync"
)

// AppName is the application name used in version strings and the bus
// version handshake.
const AppName = "notifyd"

// gitCommitOverride is set via -ldflags at build time for container builds
// where .git is unavailable. Empty string means no override.
var gitCommitOverride string

// vcsState is the version-relevant slice of the build metadata.
type vcsState struct {
	revision string
	modified bool
}

var loadState = sync.OnceValue(func() vcsState {
	info, _ := debug.ReadBuildInfo()
	return stateFromBuildInfo(gitCommitOverride, info)
})

// stateFromBuildInfo resolves the commit hash and dirty flag from an explicit
// override and the VCS settings embedded by the toolchain. The hash is
// shortened to 8 characters; "dev" stands in when no metadata is available
// (e.g. `go test`, non-git builds).
func stateFromBuildInfo(override string, info *debug.BuildInfo) vcsState {
	state := vcsState{revision: "dev"}
	if info != nil {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					state.revision = s.Value
				}
			case "vcs.modified":
				state.modified = s.Value == "true"
			}
		}
	}
	if override != "" {
		state.revision = override
	}
	if len(state.revision) > 8 {
		state.revision = state.revision[:8]
	}
	return state
}

// Commit returns the short git commit hash, or "dev" when the build carries
// no VCS metadata.
func Commit() string {
	return loadState().revision
}

// Dirty reports whether the binary was built from a tree with uncommitted
// changes.
func Dirty() bool {
	return loadState().modified
}

// Full returns "notifyd/<commit>", the value written to the version
// handshake key and used in logging.
func Full() string {
	return AppName + "/" + Commit()
}
