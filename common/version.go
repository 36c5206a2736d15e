package common

import "runtime/debug"

// version is overridden at build time with -ldflags "-X github.com/starshine-sys/archiver/common.version=..."
var version = ""

// Version returns the version of the running binary.
// If it wasn't set at build time, the module version or VCS revision is used.
func Version() string {
	if version != "" {
		return version
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "[unknown]"
	}

	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}

	if bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "[unknown]"
}
