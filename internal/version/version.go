// SPDX-License-Identifier: MIT

// Package version carries build metadata set through -ldflags.
package version

var (
	// Version is the release version.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
