package tensor

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tensor is a handle to a typed n-dimensional view over shared storage.
//
// Views created by Get, Reshape, Narrow, Slice and the like share storage
// with their source; each handle must be disposed on its own. Dispose is
// idempotent, and any operation that reads, writes or derives from a
// disposed handle fails with ErrDisposedHandle. The metadata accessors
// (Shape, Strides, Offset, Layout, Rank, NumElements, DType, Device,
// IsContiguous, RequiresGrad, String) keep answering for the handle's last
// layout; Storage returns nil.
type Tensor struct {
	storage      *Storage
	layout       Layout
	requiresGrad bool

	// wrapped marks 0-d tensors built from Go scalars for an operator:
	// they promote by category only and never decide the device.
	wrapped bool

	disposed atomic.Bool
	cleanup  runtime.Cleanup
}

// newTensor wraps storage in a handle. It takes over one reference.
func newTensor(s *Storage, l Layout) *Tensor {
	t := &Tensor{storage: s, layout: l}
	t.cleanup = runtime.AddCleanup(t, releaseLeaked, s)
	return t
}

func releaseLeaked(s *Storage) {
	klog.V(1).Infof("tensor: releasing leaked handle to %d x %s on %s", s.numel, s.dtype, s.device)
	s.release()
}

// empty allocates a contiguous tensor of zeros.
func empty(shape Shape, dt DataType, dev Device) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if !dt.Valid() {
		return nil, errors.Wrapf(ErrTypeMismatch, "invalid data type %d", uint8(dt))
	}
	s, err := newStorage(shape.NumElements(), dt, dev)
	if err != nil {
		return nil, err
	}
	return newTensor(s, ContiguousLayout(shape)), nil
}

// check returns ErrDisposedHandle if t has been disposed.
func (t *Tensor) check(op string) error {
	if t == nil {
		return errors.Errorf("%s: nil tensor", op)
	}
	if t.disposed.Load() {
		return errors.Wrapf(ErrDisposedHandle, "%s", op)
	}
	return nil
}

// view returns a new handle sharing t's storage under layout l.
func (t *Tensor) view(op string, l Layout) (*Tensor, error) {
	if err := t.check(op); err != nil {
		return nil, err
	}
	if lo, hi := l.span(); l.Shape.NumElements() > 0 && (lo < 0 || hi > t.storage.numel) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "%s: view [%d, %d) outside storage of %d elements", op, lo, hi, t.storage.numel)
	}
	if err := t.storage.retain(); err != nil {
		return nil, errors.WithMessage(err, op)
	}
	v := newTensor(t.storage, l)
	v.requiresGrad = t.requiresGrad
	return v, nil
}

// Dispose releases the handle's reference to its storage. The memory is
// freed once every handle sharing it is disposed. Calling Dispose again is
// a no-op.
func (t *Tensor) Dispose() {
	if t == nil || !t.disposed.CompareAndSwap(false, true) {
		return
	}
	t.cleanup.Stop()
	t.storage.release()
}

// IsDisposed reports whether Dispose was called.
func (t *Tensor) IsDisposed() bool { return t.disposed.Load() }

// Shape returns a copy of the tensor dimensions.
func (t *Tensor) Shape() Shape { return t.layout.Shape.Clone() }

// Strides returns a copy of the element strides.
func (t *Tensor) Strides() []int { return append([]int(nil), t.layout.Stride...) }

// Offset returns the element offset of index [0, ...] in storage.
func (t *Tensor) Offset() int { return t.layout.Offset }

// Layout returns a copy of the tensor layout.
func (t *Tensor) Layout() Layout { return t.layout.clone() }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.layout.Shape) }

// NumElements returns the number of elements addressed.
func (t *Tensor) NumElements() int { return t.layout.Shape.NumElements() }

// DType returns the element kind.
func (t *Tensor) DType() DataType { return t.storage.dtype }

// Device returns where the storage lives.
func (t *Tensor) Device() Device { return t.storage.device }

// Storage returns the shared storage, or nil once t is disposed.
func (t *Tensor) Storage() *Storage {
	if t.disposed.Load() {
		return nil
	}
	return t.storage
}

// IsContiguous reports whether elements are laid out row-major.
func (t *Tensor) IsContiguous() bool { return t.layout.IsContiguous() }

// RequiresGrad reports the gradient flag.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// SetRequiresGrad sets the gradient flag. Only floating kinds can require
// gradients.
func (t *Tensor) SetRequiresGrad(v bool) error {
	if err := t.check("requires_grad"); err != nil {
		return err
	}
	if v && !t.DType().IsFloat() {
		return errors.Wrapf(ErrTypeMismatch, "requires_grad: only floating point tensors can require gradients, got %s", t.DType())
	}
	t.requiresGrad = v
	return nil
}

// String returns a short description, e.g. "Tensor(float32, [2 9], cpu)".
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	state := ""
	if t.IsDisposed() {
		state = ", disposed"
	}
	return fmt.Sprintf("Tensor(%s, %v, %s%s)", t.DType(), []int(t.layout.Shape), t.Device(), state)
}

// Summary formats the description followed by up to limit elements.
func (t *Tensor) Summary(limit int) (string, error) {
	if err := t.check("summary"); err != nil {
		return "", err
	}
	host, err := t.hostCopy()
	if err != nil {
		return "", err
	}
	defer host.Dispose()

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString(" [")
	data := host.storage.buf.Bytes()
	n := min(host.NumElements(), limit)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprint(&b, loadValue(host.DType(), data, host.layout.Offset+i))
	}
	if n < host.NumElements() {
		b.WriteString(" ...")
	}
	b.WriteByte(']')
	return b.String(), nil
}
