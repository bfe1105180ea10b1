package cpu

import (
	"fmt"
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/backend"
	"github.com/born-ml/tensorcore/internal/parallel"
)

// Number is the set of element types kernels compute in.
type Number interface {
	~uint8 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Integer is the integral subset of Number.
type Integer interface {
	~uint8 | ~int8 | ~int16 | ~int32 | ~int64
}

// Float is the floating subset of Number.
type Float interface {
	~float32 | ~float64
}

// BinaryOp is an elementwise arithmetic operator.
type BinaryOp int

// Arithmetic operators.
const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Rem
)

func (op BinaryOp) String() string {
	switch op {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case Rem:
		return "remainder"
	default:
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
}

// CompareOp is an elementwise comparison.
type CompareOp int

// Comparison operators.
const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op CompareOp) String() string {
	switch op {
	case Eq:
		return "eq"
	case Ne:
		return "ne"
	case Lt:
		return "lt"
	case Le:
		return "le"
	case Gt:
		return "gt"
	case Ge:
		return "ge"
	default:
		return fmt.Sprintf("CompareOp(%d)", int(op))
	}
}

// Arith bundles the kernels for one element type. Division and remainder
// differ between integral and floating domains, so they are picked at
// construction.
type Arith[T Number] struct {
	integral bool
	div      func(a, b T) T
	rem      func(a, b T) T
}

// IntegerArith returns kernels with truncating division and a remainder
// that takes the sign of the divisor.
func IntegerArith[T Integer]() Arith[T] {
	return Arith[T]{
		integral: true,
		div:      func(a, b T) T { return a / b },
		rem: func(a, b T) T {
			r := a % b
			if r != 0 && (r < 0) != (b < 0) {
				r += b
			}
			return r
		},
	}
}

// FloatArith returns IEEE kernels with a remainder that takes the sign of
// the divisor.
func FloatArith[T Float]() Arith[T] {
	return Arith[T]{
		div: func(a, b T) T { return a / b },
		rem: func(a, b T) T {
			r := T(math.Mod(float64(a), float64(b)))
			if r != 0 && (r < 0) != (b < 0) {
				r += b
			}
			return r
		},
	}
}

// Binary computes dst[i] = a[i] op b[i]. All slices have the same length.
func (k Arith[T]) Binary(op BinaryOp, dst, a, b []T, cfg parallel.Config) error {
	if len(a) != len(dst) || len(b) != len(dst) {
		return errors.Wrapf(backend.ErrShapeMismatch, "cpu: %s over %d, %d -> %d elements", op, len(a), len(b), len(dst))
	}
	if k.integral && (op == Div || op == Rem) && slices.Contains(b, 0) {
		return errors.Wrapf(backend.ErrZeroDivision, "cpu: %s", op)
	}
	return parallel.Range(len(dst), func(lo, hi int) error {
		x, y, out := a[lo:hi], b[lo:hi], dst[lo:hi]
		switch op {
		case Add:
			for i := range out {
				out[i] = x[i] + y[i]
			}
		case Sub:
			for i := range out {
				out[i] = x[i] - y[i]
			}
		case Mul:
			for i := range out {
				out[i] = x[i] * y[i]
			}
		case Div:
			for i := range out {
				out[i] = k.div(x[i], y[i])
			}
		case Rem:
			for i := range out {
				out[i] = k.rem(x[i], y[i])
			}
		default:
			return errors.Errorf("cpu: unknown operator %s", op)
		}
		return nil
	}, cfg)
}

// Compare computes dst[i] = a[i] op b[i].
func Compare[T Number](op CompareOp, dst []bool, a, b []T, cfg parallel.Config) error {
	if len(a) != len(dst) || len(b) != len(dst) {
		return errors.Wrapf(backend.ErrShapeMismatch, "cpu: %s over %d, %d -> %d elements", op, len(a), len(b), len(dst))
	}
	return parallel.Range(len(dst), func(lo, hi int) error {
		x, y, out := a[lo:hi], b[lo:hi], dst[lo:hi]
		switch op {
		case Eq:
			for i := range out {
				out[i] = x[i] == y[i]
			}
		case Ne:
			for i := range out {
				out[i] = x[i] != y[i]
			}
		case Lt:
			for i := range out {
				out[i] = x[i] < y[i]
			}
		case Le:
			for i := range out {
				out[i] = x[i] <= y[i]
			}
		case Gt:
			for i := range out {
				out[i] = x[i] > y[i]
			}
		case Ge:
			for i := range out {
				out[i] = x[i] >= y[i]
			}
		default:
			return errors.Errorf("cpu: unknown comparison %s", op)
		}
		return nil
	}, cfg)
}

// SumInt accumulates integral values in int64, wrapping on overflow.
func SumInt[T Number](a []T) int64 {
	var s int64
	for _, v := range a {
		s += int64(v)
	}
	return s
}

// SumFloat accumulates values in float64.
func SumFloat[T Number](a []T) float64 {
	var s float64
	for _, v := range a {
		s += float64(v)
	}
	return s
}
