// Package buildinfo reports the version stamped into the binary.
//
// Release builds set the variables with -ldflags, e.g.
//
//	-X 'github.com/m3rciful/topupbot/core/buildinfo.Version=v1.0.0'
//
// Commit and Date fall back to the VCS stamp of the Go toolchain.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

var stampOnce sync.Once

// Stamp fills Commit and Date from debug.ReadBuildInfo when ldflags left
// them empty.
func Stamp() {
	stampOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if Commit == "" {
					Commit = s.Value
					if len(Commit) > 12 {
						Commit = Commit[:12]
					}
				}
			case "vcs.time":
				if Date == "" {
					Date = s.Value
				}
			}
		}
	})
}

// String is the value printed by --version.
func String() string {
	Stamp()
	commit := Commit
	if commit == "" {
		commit = "local"
	}
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, Date)
}
