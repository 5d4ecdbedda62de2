// Package version is used to store the version information for the built binary.
// The Version variable is set at link time with -ldflags "-X".
package version

import (
	"fmt"

	"github.com/blang/semver/v4"
	"k8s.io/klog/v2"
)

var (
	// Version is the semver of this code.
	Version = "0.0.0-dev"

	// Commit is the git commit this was built from.
	Commit = "UNKNOWN"
)

// Semver is a variable, which holds parsed Version.
var Semver semver.Version

func init() {
	v, err := semver.Parse(Version)
	if err != nil {
		klog.Fatalf("invalid build of hostpwrctl; version.Version must be set at compile "+
			"time to a valid semver value. %v could not parse: %v", Version, err)
	}

	Semver = v
}

// Format formats Version and Commit variables into single string.
func Format() string {
	return fmt.Sprintf("Version: %s\nCommit: %s", Semver, Commit)
}
