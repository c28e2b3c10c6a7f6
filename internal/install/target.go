package install

import (
	"fmt"
	"runtime"

	"github.com/crosspack/crosspack/internal/platform"
)

// archTriples maps Go's GOARCH to the triple's arch component.
var archTriples = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
	"386":   "i686",
	"arm":   "armv7",
}

// HostTarget returns the target triple string manifests match artifacts
// against for the current host, e.g. "x86_64-apple-darwin",
// "aarch64-unknown-linux-gnu", "x86_64-pc-windows-msvc". On Linux, the
// libc component switches to "musl" when platform.DetectLibc finds the
// musl dynamic linker, since a gnu artifact won't run there.
func HostTarget() (string, error) {
	arch, ok := archTriples[runtime.GOARCH]
	if !ok {
		return "", fmt.Errorf("unsupported host architecture: %s", runtime.GOARCH)
	}

	switch runtime.GOOS {
	case "darwin":
		return arch + "-apple-darwin", nil
	case "linux":
		libc := platform.DetectLibc()
		return arch + "-unknown-linux-" + libc, nil
	case "windows":
		return arch + "-pc-windows-msvc", nil
	default:
		return "", fmt.Errorf("unsupported host OS: %s", runtime.GOOS)
	}
}
