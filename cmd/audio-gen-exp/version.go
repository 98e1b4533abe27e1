package main

// version, commit, and date are set via -ldflags at build time
// (e.g. -X main.version=1.2.3); they default to "dev"/"none"/"unknown"
// for local builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
