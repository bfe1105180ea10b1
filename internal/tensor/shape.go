package tensor

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// Shape represents the dimensions of a tensor. A nil or empty shape is a
// scalar with one element; a zero dimension makes the tensor empty.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that no dimension is negative and that the element count
// fits in an int. A count that does not fit can never be allocated and is
// reported as ErrOutOfMemory.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return errors.Wrapf(ErrShapeMismatch, "invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	if _, ok := countElements(s); !ok {
		return errors.Wrapf(ErrOutOfMemory, "shape %v has more elements than can be addressed", s)
	}
	return nil
}

// countElements multiplies the dimensions of a non-negative shape,
// reporting false on overflow.
func countElements(s Shape) (int, bool) {
	n := uint64(1)
	for _, dim := range s {
		if dim == 0 {
			return 0, true
		}
	}
	for _, dim := range s {
		hi, lo := bits.Mul64(n, uint64(dim))
		if hi != 0 || lo > math.MaxInt {
			return 0, false
		}
		n = lo
	}
	return int(n), true
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ContiguousStrides returns the row-major strides of shape:
// stride[i] is the product of every dimension after i.
func ContiguousStrides(shape Shape) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= max(shape[i], 1)
	}
	return strides
}

// IsContiguous reports whether stride lays shape out in row-major order.
// Strides of size-1 dimensions are ignored and empty shapes are contiguous,
// as neither affects which elements are addressed.
func IsContiguous(shape Shape, stride []int) bool {
	if shape.NumElements() == 0 {
		return true
	}
	want := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 1 {
			continue
		}
		if stride[i] != want {
			return false
		}
		want *= shape[i]
	}
	return true
}

// BroadcastShapes computes the broadcast shape of a and b with NumPy rules:
// shapes are right-aligned and a dimension of 1 stretches to match.
// The bool result reports whether either input needs broadcasting.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	needs := len(a) != len(b)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if j := i - (n - len(a)); j >= 0 {
			da = a[j]
		}
		if j := i - (n - len(b)); j >= 0 {
			db = b[j]
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i], needs = db, true
		case db == 1:
			out[i], needs = da, true
		default:
			return nil, false, errors.Wrapf(ErrShapeMismatch, "shapes %v and %v are not broadcastable", a, b)
		}
	}
	return out, needs, nil
}

// broadcastStrides returns strides that read a tensor of shape/stride as if
// it had been expanded to target. The shapes must be broadcast-compatible.
func broadcastStrides(shape Shape, stride []int, target Shape) []int {
	out := make([]int, len(target))
	lead := len(target) - len(shape)
	for i := range target {
		j := i - lead
		if j < 0 || (shape[j] == 1 && target[i] != 1) {
			continue
		}
		out[i] = stride[j]
	}
	return out
}

// normalizeDim maps a possibly negative dimension onto [0, rank).
func normalizeDim(dim, rank int) (int, error) {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "dimension %d out of range for rank %d", dim, rank)
	}
	return dim, nil
}
