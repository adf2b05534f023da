// Package version carries the build identity stamped in at link time.
//
// Release builds set these with, for example:
//
//	go build -ldflags "-X github.com/mkoriyama/Akari/common/version.Version=v0.3.0"
package version

var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
