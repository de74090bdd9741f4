// SPDX-License-Identifier: MIT
//
// Package build exposes the name, build timestamp, Git commit and semantic
// version embedded into the binary with linker flags, for example:
//
//	go build -ldflags "-X audioviz/pkg/build.buildName=audioviz -X audioviz/pkg/build.buildVersion=0.3.0"
//
// Development builds run without the flags; every field then reads "unknown".
package build

import (
	"errors"
	"fmt"
)

// Info holds the build metadata reported by `version` and the startup log.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the build information on one line.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

const unknown = "unknown"

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "audioviz",
		Description: "Real-time audio spectrum analyser driving terminal, network and LED matrix consumers",
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
)

// Initialize copies the ldflags variables into the build information. Every
// missing flag is reported in the returned error; the fields that were set
// are still applied so the caller may treat the error as a warning.
func Initialize() error {
	var errs []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}

	set(&buildInfo.Name, buildName, "BuildName")
	set(&buildInfo.Time, buildTime, "BuildTime")
	set(&buildInfo.Commit, buildCommit, "BuildCommit")
	set(&buildInfo.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildInfo
}
