package model

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// libraryVersion is the semantic version of this module.
const libraryVersion = "1.2.0"

// buildInfo can be set at link time:
//
//	go build -ldflags "-X github.com/Faultbox/buildplate/pkg/model.buildInfo=abc123"
var buildInfo = ""

// LibraryVersion is the version triple plus optional release and build tags.
type LibraryVersion struct {
	Major   uint64
	Minor   uint64
	Micro   uint64
	Release string // prerelease tag, e.g. "beta.1"
	Build   string // build metadata, e.g. a commit hash
}

// String returns "major.minor.micro[-release][+build]".
func (v LibraryVersion) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
	if v.Release != "" {
		s += "-" + v.Release
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// Version returns the library version.
func Version() LibraryVersion {
	return parseVersion(libraryVersion, buildInfo)
}

func parseVersion(version, build string) LibraryVersion {
	s := version
	if build != "" {
		s += "+" + build
	}
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		// Fall back to the bare version when the build tag is not valid semver.
		v = semver.MustParse(version)
	}
	return LibraryVersion{
		Major:   v.Major(),
		Minor:   v.Minor(),
		Micro:   v.Patch(),
		Release: v.Prerelease(),
		Build:   v.Metadata(),
	}
}
