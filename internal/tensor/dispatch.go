package tensor

import (
	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/parallel"
)

// strided addresses the elements of a layout inside host bytes.
type strided struct {
	data   []byte
	dtype  DataType
	layout Layout
}

// forEachOffset calls fn(i, off) for every position of shape in row-major
// order, where off = offset + index · stride.
func forEachOffset(shape Shape, stride []int, offset int, fn func(i, off int)) {
	n := shape.NumElements()
	if n == 0 {
		return
	}
	if IsContiguous(shape, stride) {
		for i := 0; i < n; i++ {
			fn(i, offset+i)
		}
		return
	}
	rank := len(shape)
	idx := make([]int, rank)
	off := offset
	for i := 0; i < n; i++ {
		fn(i, off)
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			off += stride[d]
			if idx[d] < shape[d] {
				break
			}
			off -= stride[d] * shape[d]
			idx[d] = 0
		}
	}
}

// gather reads src broadcast to shape into a fresh row-major slice.
func gather[T cpu.Number](src strided, shape Shape) []T {
	out := make([]T, shape.NumElements())
	stride := broadcastStrides(src.layout.Shape, src.layout.Stride, shape)
	forEachOffset(shape, stride, src.layout.Offset, func(i, off int) {
		out[i] = load[T](src.dtype, src.data, off)
	})
	return out
}

// scatter writes row-major values into dst.
func scatter[T cpu.Number](dst strided, values []T) {
	forEachOffset(dst.layout.Shape, dst.layout.Stride, dst.layout.Offset, func(i, off int) {
		store(dst.dtype, dst.data, off, values[i])
	})
}

func scatterBools(dst strided, values []bool) {
	forEachOffset(dst.layout.Shape, dst.layout.Stride, dst.layout.Offset, func(i, off int) {
		var v uint8
		if values[i] {
			v = 1
		}
		store(dst.dtype, dst.data, off, v)
	})
}

// kernelSet holds the host kernels of one compute kind. Operands of any
// kind are converted on load, so the table is keyed by the promoted kind
// alone.
type kernelSet struct {
	binary  func(op cpu.BinaryOp, dst, a, b strided) error
	compare func(op cpu.CompareOp, dst, a, b strided) error
	convert func(dst, src strided)
}

func newKernelSet[T cpu.Number](arith cpu.Arith[T]) kernelSet {
	return kernelSet{
		binary: func(op cpu.BinaryOp, dst, a, b strided) error {
			x := gather[T](a, dst.layout.Shape)
			y := gather[T](b, dst.layout.Shape)
			out := make([]T, len(x))
			if err := arith.Binary(op, out, x, y, parallel.DefaultConfig()); err != nil {
				return err
			}
			scatter(dst, out)
			return nil
		},
		compare: func(op cpu.CompareOp, dst, a, b strided) error {
			x := gather[T](a, dst.layout.Shape)
			y := gather[T](b, dst.layout.Shape)
			out := make([]bool, len(x))
			if err := cpu.Compare(op, out, x, y, parallel.DefaultConfig()); err != nil {
				return err
			}
			scatterBools(dst, out)
			return nil
		},
		convert: func(dst, src strided) {
			scatter(dst, gather[T](src, dst.layout.Shape))
		},
	}
}

var (
	uint8Kernels   = newKernelSet(cpu.IntegerArith[uint8]())
	float32Kernels = newKernelSet(cpu.FloatArith[float32]())

	kernelTable = map[DataType]kernelSet{
		Bool:     uint8Kernels,
		Uint8:    uint8Kernels,
		Int8:     newKernelSet(cpu.IntegerArith[int8]()),
		Int16:    newKernelSet(cpu.IntegerArith[int16]()),
		Int32:    newKernelSet(cpu.IntegerArith[int32]()),
		Int64:    newKernelSet(cpu.IntegerArith[int64]()),
		Float16:  float32Kernels,
		BFloat16: float32Kernels,
		Float32:  float32Kernels,
		Float64:  newKernelSet(cpu.FloatArith[float64]()),
	}
)
