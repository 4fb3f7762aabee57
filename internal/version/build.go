/*
Package version holds build information injected at link time with -ldflags.
*/
package version

import (
	"fmt"
	"runtime"

	"github.com/anchore/forbiddenapis/forbiddenapis/engine/classfile"
)

const valueNotProvided = "[not provided]"

// all variables here are provided as build-time arguments, with clear default values
var version = valueNotProvided
var gitCommit = valueNotProvided
var gitTreeState = valueNotProvided
var buildDate = valueNotProvided
var platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)

type Version struct {
	Version      string `json:"version"`
	GitCommit    string `json:"gitCommit"`
	GitTreeState string `json:"gitTreeState"`
	BuildDate    string `json:"buildDate"`
	GoVersion    string `json:"goVersion"`
	Compiler     string `json:"compiler"`
	Platform     string `json:"platform"`
	// MaxClassFileVersion is the newest class-file major version the engine can read.
	MaxClassFileVersion uint16 `json:"maxClassFileVersion"`
}

func FromBuild() Version {
	return Version{
		Version:             version,
		GitCommit:           gitCommit,
		GitTreeState:        gitTreeState,
		BuildDate:           buildDate,
		GoVersion:           runtime.Version(),
		Compiler:            runtime.Compiler,
		Platform:            platform,
		MaxClassFileVersion: classfile.MaxSupportedMajorVersion,
	}
}

// IsProvided reports whether the version was set at build time.
func (v Version) IsProvided() bool {
	return v.Version != valueNotProvided
}
