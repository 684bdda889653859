// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package version

import (
	"fmt"
	"strings"
)

var (
	// GitCommit is filled in by the compiler.
	GitCommit string

	// Version is the main version number being run, following semver.
	Version = "0.1.0"

	// VersionPrerelease marks pre-release builds. Empty for releases.
	VersionPrerelease = "dev"
)

// GetHumanVersion composes the pieces into a single human-readable string.
func GetHumanVersion() string {
	version := "v" + Version
	if VersionPrerelease != "" {
		version += "-" + VersionPrerelease
		if GitCommit != "" {
			version += fmt.Sprintf(" (%s)", GitCommit)
		}
	}
	return strings.ReplaceAll(version, "'", "")
}
