package backend

import "github.com/pkg/errors"

// Error kinds shared by runtimes and the tensor package. Match with errors.Is.
var (
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrDeviceMismatch      = errors.New("device mismatch")
	ErrDeviceUnavailable   = errors.New("device unavailable")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrDisposedHandle      = errors.New("use of disposed tensor")
	ErrOutOfMemory         = errors.New("out of memory")
	ErrSerializationFormat = errors.New("serialization format error")
	ErrZeroDivision        = errors.New("integer division by zero")
)
