// Package version holds the release version of the espresso line.
package version

// Version can be overridden at build time:
//
//	go build -ldflags "-X github.com/AaronLay10/EspressoLine/internal/version.Version=x.y.z"
var Version = "0.1.0"

// Service names the binary in health output and startup events.
const Service = "espressoline"
