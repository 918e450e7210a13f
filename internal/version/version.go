package version

import (
	"runtime"
	"runtime/debug"
)

var (
	AppName        = "Lapis Music"
	AppDescription = "Queue and play music in your voice channels."
	// BuildDate is set with -ldflags "-X .../internal/version.BuildDate=...".
	BuildDate = "unknown"
)

// GoVersion returns the toolchain the binary was built with.
func GoVersion() string {
	return runtime.Version()
}

// Revision returns the VCS revision recorded in the build info, if any.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 7 {
				return s.Value[:7]
			}
			return s.Value
		}
	}
	return ""
}
