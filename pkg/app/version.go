package app

const Name = "localca"

// Overridden at build time via -ldflags
var (
	Version   = "0.1.0"
	GitBranch,
	GitHash,
	BuildDate string
)
