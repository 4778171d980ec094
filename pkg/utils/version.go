// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Build metadata, overridden at link time with -ldflags "-X ...".
var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"

	// Sha is the commit the binary was built from.
	Sha = "HEAD"

	// Buildtime is the UTC build timestamp.
	Buildtime = "dev"
)
