package tensor

import "github.com/born-ml/tensorcore/internal/backend"

// Errors returned by tensor operations. Test for them with errors.Is; the
// returned errors wrap these with the operation and operand details.
var (
	ErrShapeMismatch       = backend.ErrShapeMismatch
	ErrDeviceMismatch      = backend.ErrDeviceMismatch
	ErrDeviceUnavailable   = backend.ErrDeviceUnavailable
	ErrTypeMismatch        = backend.ErrTypeMismatch
	ErrIndexOutOfRange     = backend.ErrIndexOutOfRange
	ErrDisposedHandle      = backend.ErrDisposedHandle
	ErrOutOfMemory         = backend.ErrOutOfMemory
	ErrSerializationFormat = backend.ErrSerializationFormat
	ErrZeroDivision        = backend.ErrZeroDivision
)
