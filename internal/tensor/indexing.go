package tensor

import (
	"github.com/pkg/errors"
)

// Get returns the view selected by fixing the leading dimensions at
// indices. Its rank is t.Rank()-len(indices); with a full index it is a
// 0-d view of a single element. Negative indices are out of range.
func (t *Tensor) Get(indices ...int) (*Tensor, error) {
	if err := t.check("get"); err != nil {
		return nil, err
	}
	if len(indices) > t.Rank() {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "get: %d indices for rank %d", len(indices), t.Rank())
	}
	l := t.layout
	for _, idx := range indices {
		var err error
		if l, err = l.Select(0, idx); err != nil {
			return nil, errors.WithMessage(err, "get")
		}
	}
	return t.view("get", l)
}

// Set writes value into the view selected by indices. The value is a Go
// scalar or a *Tensor broadcastable to the view's shape, converted to t's
// kind; a tensor value must live on t's device.
func (t *Tensor) Set(value any, indices ...int) error {
	dst, err := t.Get(indices...)
	if err != nil {
		return errors.WithMessage(err, "set")
	}
	defer dst.Dispose()
	src, err := wrapScalar(value)
	if err != nil {
		return errors.WithMessage(err, "set")
	}
	defer src.Dispose()
	return copyInto("set", dst, src)
}

// Item returns the only element as the Go type native to the tensor kind:
// bool, uint8, int8, int16, int32, int64, float16.Float16,
// bfloat16.BFloat16, float32 or float64.
func (t *Tensor) Item() (any, error) {
	if err := t.check("item"); err != nil {
		return nil, err
	}
	if t.NumElements() != 1 {
		return nil, errors.Wrapf(ErrShapeMismatch, "item: tensor of shape %v has %d elements", t.layout.Shape, t.NumElements())
	}
	st := newStaging()
	defer st.done()
	s, err := t.strided(st)
	if err != nil {
		return nil, err
	}
	// Every dimension has size 1, so index [0, ...] is the element.
	return loadValue(s.dtype, s.data, s.layout.Offset), nil
}

// Float64 returns the only element converted to float64.
func (t *Tensor) Float64() (float64, error) {
	return scalarValue[float64](t, "float64")
}

// Int64 returns the only element converted to int64.
func (t *Tensor) Int64() (int64, error) {
	return scalarValue[int64](t, "int64")
}

// Bool returns whether the only element is non-zero.
func (t *Tensor) Bool() (bool, error) {
	v, err := scalarValue[float64](t, "bool")
	return v != 0, err
}

func scalarValue[T float64 | int64](t *Tensor, op string) (T, error) {
	if err := t.check(op); err != nil {
		return 0, err
	}
	if t.NumElements() != 1 {
		return 0, errors.Wrapf(ErrShapeMismatch, "%s: tensor of shape %v has %d elements", op, t.layout.Shape, t.NumElements())
	}
	vals, err := values[T](t, op)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}
