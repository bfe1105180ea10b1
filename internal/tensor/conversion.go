package tensor

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/backend/cpu"
)

// strided returns t's elements inside the staged bytes of its storage.
func (t *Tensor) strided(st *staging) (strided, error) {
	data, err := st.bytes(t.storage)
	// st now holds its own reference to the storage.
	runtime.KeepAlive(t)
	if err != nil {
		return strided{}, err
	}
	return strided{data: data, dtype: t.storage.dtype, layout: t.layout}, nil
}

// copyInto writes src, broadcast to dst's shape and converted to dst's
// kind, into the elements of dst.
func copyInto(op string, dst, src *Tensor) error {
	if err := dst.check(op); err != nil {
		return err
	}
	if err := src.check(op); err != nil {
		return err
	}
	if !src.wrapped && src.Device() != dst.Device() {
		return errors.Wrapf(ErrDeviceMismatch, "%s: source on %s, destination on %s", op, src.Device(), dst.Device())
	}
	shape, _, err := BroadcastShapes(src.layout.Shape, dst.layout.Shape)
	if err != nil || !shape.Equal(dst.layout.Shape) {
		return errors.Wrapf(ErrShapeMismatch, "%s: cannot write %v into %v", op, src.layout.Shape, dst.layout.Shape)
	}

	st := newStaging()
	defer st.done()
	d, err := dst.strided(st)
	if err != nil {
		return err
	}
	s, err := src.strided(st)
	if err != nil {
		return err
	}
	kernelTable[PromoteTypes(src.DType(), dst.DType())].convert(d, s)
	st.markDirty(dst.storage)
	return st.commit()
}

// Clone returns a contiguous copy with its own storage on the same device.
func (t *Tensor) Clone() (*Tensor, error) {
	return t.convert("clone", t.DType())
}

// ToType returns a contiguous copy converted to dt. Conversions follow Go's
// numeric conversion rules; float16 and bfloat16 round through float32,
// and converting to bool maps non-zero to true.
func (t *Tensor) ToType(dt DataType) (*Tensor, error) {
	return t.convert("to_type", dt)
}

func (t *Tensor) convert(op string, dt DataType) (*Tensor, error) {
	if err := t.check(op); err != nil {
		return nil, err
	}
	out, err := empty(t.layout.Shape, dt, t.Device())
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}
	if err := copyInto(op, out, t); err != nil {
		out.Dispose()
		return nil, err
	}
	out.requiresGrad = t.requiresGrad && dt.IsFloat()
	return out, nil
}

// Contiguous returns a row-major handle: a view when t already is one,
// otherwise a copy.
func (t *Tensor) Contiguous() (*Tensor, error) {
	if err := t.check("contiguous"); err != nil {
		return nil, err
	}
	if t.IsContiguous() {
		return t.view("contiguous", t.layout.clone())
	}
	return t.Clone()
}

// hostCopy returns a contiguous handle on the host.
func (t *Tensor) hostCopy() (*Tensor, error) {
	if t.Device().IsHost() {
		return t.Contiguous()
	}
	return t.ToDevice(CPU)
}

// Bytes returns the elements in row-major order as little-endian bytes.
func (t *Tensor) Bytes() ([]byte, error) {
	if err := t.check("bytes"); err != nil {
		return nil, err
	}
	host, err := t.hostCopy()
	if err != nil {
		return nil, err
	}
	defer host.Dispose()
	size := host.DType().Size()
	lo := host.layout.Offset * size
	return append([]byte(nil), host.storage.buf.Bytes()[lo:lo+host.NumElements()*size]...), nil
}

func values[T cpu.Number](t *Tensor, op string) ([]T, error) {
	if err := t.check(op); err != nil {
		return nil, err
	}
	st := newStaging()
	defer st.done()
	s, err := t.strided(st)
	if err != nil {
		return nil, err
	}
	return gather[T](s, s.layout.Shape), nil
}

// Float64s returns the elements in row-major order converted to float64.
func (t *Tensor) Float64s() ([]float64, error) {
	return values[float64](t, "float64s")
}

// Int64s returns the elements in row-major order converted to int64.
func (t *Tensor) Int64s() ([]int64, error) {
	return values[int64](t, "int64s")
}

// Bools returns whether each element, in row-major order, is non-zero.
func (t *Tensor) Bools() ([]bool, error) {
	vals, err := values[float64](t, "bools")
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v != 0
	}
	return out, nil
}
