package grid

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionFile string

// Version is the release of the grid module.
var Version = strings.TrimSpace(versionFile)

// BuildInfo describes the running binary, e.g. "grid/0.1.0 go1.24.3 linux/amd64".
func BuildInfo() string {
	return fmt.Sprintf("grid/%s %s %s/%s", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
