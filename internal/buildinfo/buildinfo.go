// Package buildinfo carries the version and commit of the hostres binary.
package buildinfo

// Version is set at link-time with -ldflags "-X .../buildinfo.Version=...".
var Version = "v0.1.0"

// Commit is set at link-time with -ldflags.
// Default is "unknown" so tests and "go run ." still work.
var Commit = "unknown"
