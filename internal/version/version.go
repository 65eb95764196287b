// Package version holds build metadata, set with -ldflags at release time.
package version

// Version is the release version of the binary.
var Version = "dev"

// Commit is the VCS revision the binary was built from.
var Commit = "unknown"
