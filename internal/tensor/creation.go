package tensor

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"
)

// Option configures a tensor factory.
type Option func(*options)

type options struct {
	device       Device
	requiresGrad bool
}

// OnDevice places the new tensor on dev instead of the host.
func OnDevice(dev Device) Option {
	return func(o *options) { o.device = dev }
}

// WithRequiresGrad marks the new tensor as requiring gradients. Only
// floating kinds accept it.
func WithRequiresGrad() Option {
	return func(o *options) { o.requiresGrad = true }
}

func applyOptions(opts []Option) options {
	o := options{device: CPU}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) finish(op string, t *Tensor) (*Tensor, error) {
	if o.requiresGrad {
		if err := t.SetRequiresGrad(true); err != nil {
			t.Dispose()
			return nil, errors.WithMessage(err, op)
		}
	}
	return t, nil
}

// fromHost builds a tensor of shape from row-major little-endian bytes.
func fromHost(op string, raw []byte, dt DataType, shape Shape, opts []Option) (*Tensor, error) {
	o := applyOptions(opts)
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, op)
	}
	want, err := byteSize(shape.NumElements(), dt)
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}
	if len(raw) != want {
		return nil, errors.Wrapf(ErrShapeMismatch, "%s: %d bytes of %s for shape %v, want %d", op, len(raw), dt, shape, want)
	}
	s, err := newStorageFrom(raw, dt, o.device)
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}
	return o.finish(op, newTensor(s, ContiguousLayout(shape)))
}

// Zeros returns a tensor of zeros.
func Zeros(shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	o := applyOptions(opts)
	t, err := empty(shape, dt, o.device)
	if err != nil {
		return nil, errors.WithMessage(err, "zeros")
	}
	return o.finish("zeros", t)
}

// Ones returns a tensor of ones.
func Ones(shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	return Full(shape, 1, dt, opts...)
}

// Full returns a tensor with every element set to value, converted to dt.
func Full(shape Shape, value any, dt DataType, opts ...Option) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, "full")
	}
	if !dt.Valid() {
		return nil, errors.Wrapf(ErrTypeMismatch, "full: invalid data type %d", uint8(dt))
	}
	scalar, err := wrapScalar(value)
	if err != nil {
		return nil, errors.WithMessage(err, "full")
	}
	defer scalar.Dispose()

	size, err := byteSize(shape.NumElements(), dt)
	if err != nil {
		return nil, errors.WithMessage(err, "full")
	}
	raw := make([]byte, size)
	st := newStaging()
	defer st.done()
	src, err := scalar.strided(st)
	if err != nil {
		return nil, err
	}
	dst := strided{data: raw, dtype: dt, layout: ContiguousLayout(shape)}
	kernelTable[PromoteTypes(scalar.DType(), dt)].convert(dst, src)
	return fromHost("full", raw, dt, shape, opts)
}

// FromBuffer copies a typed Go slice into a new tensor of shape. The kind
// follows the element type: []int becomes Int64, []bool Bool, and so on.
// The slice is never aliased.
func FromBuffer(data any, shape Shape, opts ...Option) (*Tensor, error) {
	dt, raw, err := encodeSlice(data)
	if err != nil {
		return nil, errors.WithMessage(err, "from_buffer")
	}
	return fromHost("from_buffer", raw, dt, shape, opts)
}

// FromBytes copies row-major little-endian element bytes into a new tensor.
func FromBytes(dt DataType, raw []byte, shape Shape, opts ...Option) (*Tensor, error) {
	if !dt.Valid() {
		return nil, errors.Wrapf(ErrTypeMismatch, "from_bytes: invalid data type %d", uint8(dt))
	}
	return fromHost("from_bytes", raw, dt, shape, opts)
}

// FromScalar returns a 0-d tensor holding v. The kind follows v's Go type;
// an untyped integer constant is an int and becomes Int64.
func FromScalar(v any, opts ...Option) (*Tensor, error) {
	dt, raw, err := encodeScalar(v)
	if err != nil {
		return nil, errors.WithMessage(err, "from_scalar")
	}
	return fromHost("from_scalar", raw, dt, Shape{}, opts)
}

// wrapScalar turns an operator's Go value into a 0-d host tensor. A
// *Tensor is returned as a new view.
func wrapScalar(v any) (*Tensor, error) {
	if t, ok := v.(*Tensor); ok {
		return t.view("scalar", t.layout.clone())
	}
	t, err := FromScalar(v)
	if err != nil {
		return nil, err
	}
	t.wrapped = true
	return t, nil
}

// Arange returns the values start, start+step, ... below end (above end
// for a negative step) as a 1-d tensor.
func Arange(start, end, step float64, dt DataType, opts ...Option) (*Tensor, error) {
	if step == 0 || math.IsNaN(step) {
		return nil, errors.Wrapf(ErrShapeMismatch, "arange: invalid step %v", step)
	}
	n := max(int(math.Ceil((end-start)/step)), 0)
	return generate("arange", Shape{n}, dt, opts, func(i int) float64 {
		return start + float64(i)*step
	})
}

// Eye returns the n×n identity matrix.
func Eye(n int, dt DataType, opts ...Option) (*Tensor, error) {
	return generate("eye", Shape{n, n}, dt, opts, func(i int) float64 {
		if i/n == i%n {
			return 1
		}
		return 0
	})
}

func generate(op string, shape Shape, dt DataType, opts []Option, f func(i int) float64) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, op)
	}
	if !dt.Valid() {
		return nil, errors.Wrapf(ErrTypeMismatch, "%s: invalid data type %d", op, uint8(dt))
	}
	n := shape.NumElements()
	size, err := byteSize(n, dt)
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}
	raw := make([]byte, size)
	for i := 0; i < n; i++ {
		store(dt, raw, i, f(i))
	}
	return fromHost(op, raw, dt, shape, opts)
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
)

// ManualSeed makes the random factories deterministic.
func ManualSeed(seed uint64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func random(op string, shape Shape, dt DataType, opts []Option, draw func(r *rand.Rand) float64) (*Tensor, error) {
	rngMu.Lock()
	defer rngMu.Unlock()
	return generate(op, shape, dt, opts, func(int) float64 { return draw(rng) })
}

// Rand returns values drawn uniformly from [0, 1). Only floating kinds
// are supported.
func Rand(shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	if !dt.IsFloat() {
		return nil, errors.Wrapf(ErrTypeMismatch, "rand: %s is not a floating point type", dt)
	}
	return random("rand", shape, dt, opts, (*rand.Rand).Float64)
}

// Randn returns values drawn from the standard normal distribution. Only
// floating kinds are supported.
func Randn(shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	if !dt.IsFloat() {
		return nil, errors.Wrapf(ErrTypeMismatch, "randn: %s is not a floating point type", dt)
	}
	return random("randn", shape, dt, opts, (*rand.Rand).NormFloat64)
}

// RandInt returns integers drawn uniformly from [0, high), stored as dt.
func RandInt(high int64, shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	if high <= 0 {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "randint: high must be positive, got %d", high)
	}
	if dt == Bool {
		return nil, errors.Wrap(ErrTypeMismatch, "randint: bool is not a numeric type")
	}
	return random("randint", shape, dt, opts, func(r *rand.Rand) float64 {
		return float64(r.Int64N(high))
	})
}
