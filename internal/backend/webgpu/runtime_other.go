//go:build !windows

package webgpu

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/backend"
)

// Runtime is unavailable on this platform.
type Runtime struct {
	backend.Runtime
}

// New always fails: the go-webgpu bindings are only wired on windows.
func New() (*Runtime, error) {
	return nil, errors.Wrapf(backend.ErrDeviceUnavailable, "webgpu: not supported on %s", runtime.GOOS)
}
