package tensor

import (
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/backend"
)

// copyStorage copies all of src into new storage on dev. It returns after
// the target runtime reports the copy complete.
func copyStorage(src *Storage, dev Device) (*Storage, error) {
	dst, err := newStorage(src.numel, src.dtype, dev)
	if err != nil {
		return nil, err
	}
	if err := transferBuffer(dst, src); err != nil {
		dst.release()
		return nil, errors.WithMessagef(err, "copy %s -> %s", src.device, dev)
	}
	klog.V(2).Infof("tensor: copied %s from %s to %s", humanize.IBytes(uint64(src.ByteSize())), src.device, dev)
	return dst, nil
}

func transferBuffer(dst, src *Storage) error {
	if err := src.rt.Synchronize(src.device.Index); err != nil {
		return err
	}
	in, out := src.buf.Bytes(), dst.buf.Bytes()
	switch {
	case in != nil && out != nil:
		copy(out, in)
		return nil
	case out != nil:
		return src.buf.ReadAt(out, 0)
	case in != nil:
		if err := dst.buf.WriteAt(in, 0); err != nil {
			return err
		}
	default:
		if c, ok := dst.buf.(backend.Copier); ok && dst.rt == src.rt {
			if err := c.CopyFrom(src.buf); err != nil {
				return err
			}
		} else {
			tmp := make([]byte, src.buf.Len())
			if err := src.buf.ReadAt(tmp, 0); err != nil {
				return err
			}
			if err := dst.buf.WriteAt(tmp, 0); err != nil {
				return err
			}
		}
	}
	return dst.rt.Synchronize(dst.device.Index)
}

// ToDevice returns a handle on dev. On the same device the result is a view
// sharing t's storage; otherwise the elements are copied, contiguously,
// into new storage and the copy has completed when ToDevice returns.
func (t *Tensor) ToDevice(dev Device) (*Tensor, error) {
	if err := t.check("to_device"); err != nil {
		return nil, err
	}
	if dev == t.Device() {
		return t.view("to_device", t.layout.clone())
	}
	if _, err := runtimeFor(dev); err != nil {
		return nil, errors.WithMessage(err, "to_device")
	}

	src := t
	if !t.IsContiguous() || t.layout.Offset != 0 || t.NumElements() != t.storage.numel {
		c, err := t.Clone()
		if err != nil {
			return nil, err
		}
		defer c.Dispose()
		src = c
	}
	s, err := copyStorage(src.storage, dev)
	runtime.KeepAlive(src)
	runtime.KeepAlive(t)
	if err != nil {
		return nil, err
	}
	out := newTensor(s, ContiguousLayout(t.layout.Shape))
	out.requiresGrad = t.requiresGrad
	return out, nil
}

// CPU returns a handle on the host.
func (t *Tensor) CPU() (*Tensor, error) {
	return t.ToDevice(CPU)
}

// Accelerator returns a handle on accelerator 0.
func (t *Tensor) Accelerator() (*Tensor, error) {
	return t.ToDevice(AcceleratorDevice(0))
}
