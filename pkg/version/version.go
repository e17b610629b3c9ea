// Package version holds the build version of ridelog.
package version

// Version is overridden at build time via -ldflags "-X ridelog/pkg/version.Version=...".
var Version = "v0.3.0"
