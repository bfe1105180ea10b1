package tensor

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/backend/cpu"
)

// resultType promotes two operand kinds. A wrapped scalar only moves the
// result to another category.
func resultType(a, b *Tensor) DataType {
	switch {
	case a.wrapped && !b.wrapped:
		return promoteScalar(b.DType(), a.DType())
	case b.wrapped && !a.wrapped:
		return promoteScalar(a.DType(), b.DType())
	default:
		return PromoteTypes(a.DType(), b.DType())
	}
}

// resolveDevice returns the device shared by the non-scalar operands.
func resolveDevice(op string, a, b *Tensor) (Device, error) {
	switch {
	case a.wrapped && b.wrapped:
		return CPU, nil
	case a.wrapped:
		return b.Device(), nil
	case b.wrapped:
		return a.Device(), nil
	case a.Device() != b.Device():
		return Device{}, errors.Wrapf(ErrDeviceMismatch, "%s: operands on %s and %s", op, a.Device(), b.Device())
	default:
		return a.Device(), nil
	}
}

// prepare validates the operands of an elementwise operator and returns
// the broadcast shape and device.
func prepare(op string, a, b *Tensor) (Shape, Device, error) {
	if err := a.check(op); err != nil {
		return nil, Device{}, err
	}
	if err := b.check(op); err != nil {
		return nil, Device{}, err
	}
	dev, err := resolveDevice(op, a, b)
	if err != nil {
		return nil, Device{}, err
	}
	shape, _, err := BroadcastShapes(a.layout.Shape, b.layout.Shape)
	if err != nil {
		return nil, Device{}, errors.WithMessage(err, op)
	}
	return shape, dev, nil
}

// checkInPlace verifies that the receiver can hold a result of shape and
// kind dt.
func checkInPlace(op string, recv *Tensor, shape Shape, dt DataType) error {
	if !recv.layout.Shape.Equal(shape) {
		return errors.Wrapf(ErrShapeMismatch, "%s: result shape %v does not match receiver %v", op, shape, recv.layout.Shape)
	}
	if dt != recv.DType() {
		return errors.Wrapf(ErrTypeMismatch, "%s: result type %s cannot be stored in %s receiver", op, dt, recv.DType())
	}
	if recv.layout.overlaps() {
		return errors.Wrapf(ErrShapeMismatch, "%s: receiver %v has overlapping elements (strides %v)", op, recv.layout.Shape, recv.layout.Stride)
	}
	return nil
}

// run stages the operands, runs kernel and commits dst.
func run(dst, a, b *Tensor, kernel func(dst, a, b strided) error) error {
	st := newStaging()
	defer st.done()
	d, err := dst.strided(st)
	if err != nil {
		return err
	}
	x, err := a.strided(st)
	if err != nil {
		return err
	}
	y, err := b.strided(st)
	if err != nil {
		return err
	}
	if err := kernel(d, x, y); err != nil {
		return err
	}
	st.markDirty(dst.storage)
	return st.commit()
}

// binaryOp applies an arithmetic operator. With inPlace the result is written
// into a and a is returned.
func binaryOp(op cpu.BinaryOp, a, b *Tensor, inPlace bool) (*Tensor, error) {
	name := op.String()
	if inPlace {
		name += "_"
	}
	shape, dev, err := prepare(name, a, b)
	if err != nil {
		return nil, err
	}
	dt := resultType(a, b)
	switch {
	case op == cpu.Div && !dt.IsFloat():
		dt = Float32
	case dt == Bool && (op == cpu.Sub || op == cpu.Rem):
		return nil, errors.Wrapf(ErrTypeMismatch, "%s: not supported for bool tensors", name)
	}

	dst := a
	if inPlace {
		if err := checkInPlace(name, a, shape, dt); err != nil {
			return nil, err
		}
	} else if dst, err = empty(shape, dt, dev); err != nil {
		return nil, errors.WithMessage(err, name)
	}

	err = run(dst, a, b, func(d, x, y strided) error { return kernelTable[dt].binary(op, d, x, y) })
	if err != nil {
		if !inPlace {
			dst.Dispose()
		}
		return nil, errors.WithMessagef(err, "%s %v %s, %v %s", name, a.layout.Shape, a.DType(), b.layout.Shape, b.DType())
	}
	return dst, nil
}

// compare applies a comparison. The result is Bool, or 1/0 in the
// receiver's kind when inPlace.
func compare(op cpu.CompareOp, a, b *Tensor, inPlace bool) (*Tensor, error) {
	name := op.String()
	if inPlace {
		name += "_"
	}
	shape, dev, err := prepare(name, a, b)
	if err != nil {
		return nil, err
	}
	dt := resultType(a, b)

	dst := a
	if inPlace {
		if err := checkInPlace(name, a, shape, a.DType()); err != nil {
			return nil, err
		}
	} else if dst, err = empty(shape, Bool, dev); err != nil {
		return nil, errors.WithMessage(err, name)
	}

	err = run(dst, a, b, func(d, x, y strided) error { return kernelTable[dt].compare(op, d, x, y) })
	if err != nil {
		if !inPlace {
			dst.Dispose()
		}
		return nil, errors.WithMessage(err, name)
	}
	return dst, nil
}

func binaryScalar(op cpu.BinaryOp, t *Tensor, v any, inPlace bool) (*Tensor, error) {
	s, err := wrapScalar(v)
	if err != nil {
		return nil, errors.WithMessage(err, op.String())
	}
	defer s.Dispose()
	return binaryOp(op, t, s, inPlace)
}

func compareScalar(op cpu.CompareOp, t *Tensor, v any, inPlace bool) (*Tensor, error) {
	s, err := wrapScalar(v)
	if err != nil {
		return nil, errors.WithMessage(err, op.String())
	}
	defer s.Dispose()
	return compare(op, t, s, inPlace)
}

// Add returns t + other with broadcasting. On bool tensors it is logical or.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Add, t, other, false) }

// AddScalar returns t + v.
func (t *Tensor) AddScalar(v any) (*Tensor, error) { return binaryScalar(cpu.Add, t, v, false) }

// AddInPlace adds other into t and returns t.
func (t *Tensor) AddInPlace(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Add, t, other, true) }

// AddScalarInPlace adds v into t and returns t.
func (t *Tensor) AddScalarInPlace(v any) (*Tensor, error) { return binaryScalar(cpu.Add, t, v, true) }

// Sub returns t - other with broadcasting.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Sub, t, other, false) }

// SubScalar returns t - v.
func (t *Tensor) SubScalar(v any) (*Tensor, error) { return binaryScalar(cpu.Sub, t, v, false) }

// SubInPlace subtracts other from t and returns t.
func (t *Tensor) SubInPlace(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Sub, t, other, true) }

// SubScalarInPlace subtracts v from t and returns t.
func (t *Tensor) SubScalarInPlace(v any) (*Tensor, error) { return binaryScalar(cpu.Sub, t, v, true) }

// Mul returns t * other with broadcasting. On bool tensors it is logical and.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Mul, t, other, false) }

// MulScalar returns t * v.
func (t *Tensor) MulScalar(v any) (*Tensor, error) { return binaryScalar(cpu.Mul, t, v, false) }

// MulInPlace multiplies t by other and returns t.
func (t *Tensor) MulInPlace(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Mul, t, other, true) }

// MulScalarInPlace multiplies t by v and returns t.
func (t *Tensor) MulScalarInPlace(v any) (*Tensor, error) { return binaryScalar(cpu.Mul, t, v, true) }

// Div returns t / other with broadcasting. Division is always true
// division: integral and bool operands produce Float32.
func (t *Tensor) Div(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Div, t, other, false) }

// DivScalar returns t / v.
func (t *Tensor) DivScalar(v any) (*Tensor, error) { return binaryScalar(cpu.Div, t, v, false) }

// DivInPlace divides t by other and returns t. The receiver must be a
// floating kind.
func (t *Tensor) DivInPlace(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Div, t, other, true) }

// DivScalarInPlace divides t by v and returns t.
func (t *Tensor) DivScalarInPlace(v any) (*Tensor, error) { return binaryScalar(cpu.Div, t, v, true) }

// Remainder returns t mod other; a non-zero result has the sign of the
// divisor. Integral division by zero fails with ErrZeroDivision.
func (t *Tensor) Remainder(other *Tensor) (*Tensor, error) { return binaryOp(cpu.Rem, t, other, false) }

// RemainderScalar returns t mod v.
func (t *Tensor) RemainderScalar(v any) (*Tensor, error) { return binaryScalar(cpu.Rem, t, v, false) }

// RemainderInPlace stores t mod other into t and returns t.
func (t *Tensor) RemainderInPlace(other *Tensor) (*Tensor, error) {
	return binaryOp(cpu.Rem, t, other, true)
}

// RemainderScalarInPlace stores t mod v into t and returns t.
func (t *Tensor) RemainderScalarInPlace(v any) (*Tensor, error) {
	return binaryScalar(cpu.Rem, t, v, true)
}

// Eq returns a bool tensor of t == other.
func (t *Tensor) Eq(other *Tensor) (*Tensor, error) { return compare(cpu.Eq, t, other, false) }

// EqScalar returns a bool tensor of t == v.
func (t *Tensor) EqScalar(v any) (*Tensor, error) { return compareScalar(cpu.Eq, t, v, false) }

// EqInPlace stores t == other into t as 1 or 0 and returns t.
func (t *Tensor) EqInPlace(other *Tensor) (*Tensor, error) { return compare(cpu.Eq, t, other, true) }

// EqScalarInPlace stores t == v into t as 1 or 0 and returns t.
func (t *Tensor) EqScalarInPlace(v any) (*Tensor, error) { return compareScalar(cpu.Eq, t, v, true) }

// Ne returns a bool tensor of t != other.
func (t *Tensor) Ne(other *Tensor) (*Tensor, error) { return compare(cpu.Ne, t, other, false) }

// NeScalar returns a bool tensor of t != v.
func (t *Tensor) NeScalar(v any) (*Tensor, error) { return compareScalar(cpu.Ne, t, v, false) }

// NeInPlace stores t != other into t as 1 or 0 and returns t.
func (t *Tensor) NeInPlace(other *Tensor) (*Tensor, error) { return compare(cpu.Ne, t, other, true) }

// NeScalarInPlace stores t != v into t as 1 or 0 and returns t.
func (t *Tensor) NeScalarInPlace(v any) (*Tensor, error) { return compareScalar(cpu.Ne, t, v, true) }

// Lt returns a bool tensor of t < other.
func (t *Tensor) Lt(other *Tensor) (*Tensor, error) { return compare(cpu.Lt, t, other, false) }

// LtScalar returns a bool tensor of t < v.
func (t *Tensor) LtScalar(v any) (*Tensor, error) { return compareScalar(cpu.Lt, t, v, false) }

// LtInPlace stores t < other into t as 1 or 0 and returns t.
func (t *Tensor) LtInPlace(other *Tensor) (*Tensor, error) { return compare(cpu.Lt, t, other, true) }

// LtScalarInPlace stores t < v into t as 1 or 0 and returns t.
func (t *Tensor) LtScalarInPlace(v any) (*Tensor, error) { return compareScalar(cpu.Lt, t, v, true) }

// Le returns a bool tensor of t <= other.
func (t *Tensor) Le(other *Tensor) (*Tensor, error) { return compare(cpu.Le, t, other, false) }

// LeScalar returns a bool tensor of t <= v.
func (t *Tensor) LeScalar(v any) (*Tensor, error) { return compareScalar(cpu.Le, t, v, false) }

// LeInPlace stores t <= other into t as 1 or 0 and returns t.
func (t *Tensor) LeInPlace(other *Tensor) (*Tensor, error) { return compare(cpu.Le, t, other, true) }

// LeScalarInPlace stores t <= v into t as 1 or 0 and returns t.
func (t *Tensor) LeScalarInPlace(v any) (*Tensor, error) { return compareScalar(cpu.Le, t, v, true) }

// Gt returns a bool tensor of t > other.
func (t *Tensor) Gt(other *Tensor) (*Tensor, error) { return compare(cpu.Gt, t, other, false) }

// GtScalar returns a bool tensor of t > v.
func (t *Tensor) GtScalar(v any) (*Tensor, error) { return compareScalar(cpu.Gt, t, v, false) }

// GtInPlace stores t > other into t as 1 or 0 and returns t.
func (t *Tensor) GtInPlace(other *Tensor) (*Tensor, error) { return compare(cpu.Gt, t, other, true) }

// GtScalarInPlace stores t > v into t as 1 or 0 and returns t.
func (t *Tensor) GtScalarInPlace(v any) (*Tensor, error) { return compareScalar(cpu.Gt, t, v, true) }

// Ge returns a bool tensor of t >= other.
func (t *Tensor) Ge(other *Tensor) (*Tensor, error) { return compare(cpu.Ge, t, other, false) }

// GeScalar returns a bool tensor of t >= v.
func (t *Tensor) GeScalar(v any) (*Tensor, error) { return compareScalar(cpu.Ge, t, v, false) }

// GeInPlace stores t >= other into t as 1 or 0 and returns t.
func (t *Tensor) GeInPlace(other *Tensor) (*Tensor, error) { return compare(cpu.Ge, t, other, true) }

// GeScalarInPlace stores t >= v into t as 1 or 0 and returns t.
func (t *Tensor) GeScalarInPlace(v any) (*Tensor, error) { return compareScalar(cpu.Ge, t, v, true) }

// Equal reports whether t and other have the same shape and equal
// elements. Kinds may differ; elements are compared after promotion.
func (t *Tensor) Equal(other *Tensor) (bool, error) {
	if err := t.check("equal"); err != nil {
		return false, err
	}
	if err := other.check("equal"); err != nil {
		return false, err
	}
	if !t.layout.Shape.Equal(other.layout.Shape) {
		return false, nil
	}
	eq, err := t.Eq(other)
	if err != nil {
		return false, err
	}
	defer eq.Dispose()
	bools, err := eq.Bools()
	if err != nil {
		return false, err
	}
	for _, b := range bools {
		if !b {
			return false, nil
		}
	}
	return true, nil
}
