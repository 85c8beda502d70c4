// Package version reports the build version of scrapbee.
package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

// Set at link time: -ldflags "-X github.com/vctfence/scrapbee/pkg/version.Version=1.2.3"
var (
	Version = "0.4.0-dev"
	Commit  = "unknown"
)

var fallback = semver.MustParse("0.0.0-dev")

// Current returns the parsed build version. Unparseable values fall back to
// 0.0.0-dev.
func Current() *semver.Version {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return fallback
	}
	return v
}

// Satisfies reports whether the build version meets constraint.
func Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	return c.Check(Current()), nil
}

// UserAgent is sent by network backends.
func UserAgent() string {
	return fmt.Sprintf("scrapbee/%s (%s/%s)", Current().String(), runtime.GOOS, runtime.GOARCH)
}

// String is the long form printed by the version command.
func String() string {
	return fmt.Sprintf("scrapbee %s (commit %s, %s)", Current().Original(), Commit, runtime.Version())
}
