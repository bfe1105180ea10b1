package tensor

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/parallel"
)

func sumType(op string, src DataType, kinds []DataType) (DataType, error) {
	switch len(kinds) {
	case 0:
		return SumType(src), nil
	case 1:
		if !kinds[0].Valid() {
			return 0, errors.Wrapf(ErrTypeMismatch, "%s: invalid data type %d", op, uint8(kinds[0]))
		}
		return kinds[0], nil
	default:
		return 0, errors.Errorf("%s: at most one result type, got %v", op, kinds)
	}
}

// Sum returns the 0-d sum of all elements. The result kind is SumType of
// t's kind unless given: integral and bool tensors sum to Int64. With an
// explicit kind, elements are converted to it before summing.
func (t *Tensor) Sum(kind ...DataType) (*Tensor, error) {
	if err := t.check("sum"); err != nil {
		return nil, err
	}
	flat, err := t.Reshape(-1)
	if err != nil {
		c, cerr := t.Contiguous()
		if cerr != nil {
			return nil, cerr
		}
		defer c.Dispose()
		if flat, err = c.Reshape(-1); err != nil {
			return nil, err
		}
	}
	defer flat.Dispose()
	return flat.reduceLast("sum", kind)
}

// SumDim sums along dim. With keepDim the reduced dimension stays with
// size 1.
func (t *Tensor) SumDim(dim int, keepDim bool, kind ...DataType) (*Tensor, error) {
	if err := t.check("sum"); err != nil {
		return nil, err
	}
	d, err := normalizeDim(dim, t.Rank())
	if err != nil {
		return nil, errors.WithMessage(err, "sum")
	}
	perm := make([]int, 0, t.Rank())
	for i := 0; i < t.Rank(); i++ {
		if i != d {
			perm = append(perm, i)
		}
	}
	perm = append(perm, d)
	moved, err := t.Permute(perm...)
	if err != nil {
		return nil, err
	}
	defer moved.Dispose()
	out, err := moved.reduceLast("sum", kind)
	if err != nil || !keepDim {
		return out, err
	}
	defer out.Dispose()
	return out.Unsqueeze(d)
}

// reduceLast sums over the last dimension.
func (t *Tensor) reduceLast(op string, kinds []DataType) (*Tensor, error) {
	dt, err := sumType(op, t.DType(), kinds)
	if err != nil {
		return nil, err
	}
	shape := t.layout.Shape
	outShape := shape[:len(shape)-1].Clone()
	n := shape[len(shape)-1]
	out, err := empty(outShape, dt, t.Device())
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}

	st := newStaging()
	defer st.done()
	src, err := t.strided(st)
	if err == nil {
		var dst strided
		if dst, err = out.strided(st); err == nil {
			rows := outShape.NumElements()
			// Rows write disjoint elements of dst.
			if dt.IsFloat() {
				vals := gather[float64](src, shape)
				parallel.For(rows, func(r int) {
					store(dt, dst.data, r, cpu.SumFloat(vals[r*n:(r+1)*n]))
				}, parallel.DefaultConfig())
			} else {
				vals := gatherAs[int64](src, shape, dt)
				parallel.For(rows, func(r int) {
					store(dt, dst.data, r, cpu.SumInt(vals[r*n:(r+1)*n]))
				}, parallel.DefaultConfig())
			}
			st.markDirty(out.storage)
			err = st.commit()
		}
	}
	if err != nil {
		out.Dispose()
		return nil, errors.WithMessage(err, op)
	}
	return out, nil
}

// gatherAs reads src as if converted to dt first, then widened to T.
func gatherAs[T cpu.Number](src strided, shape Shape, dt DataType) []T {
	if src.dtype == dt || !src.dtype.IsFloat() {
		return gather[T](src, shape)
	}
	// Float to integral: truncate through the target kind.
	tmp := make([]byte, shape.NumElements()*dt.Size())
	conv := strided{data: tmp, dtype: dt, layout: ContiguousLayout(shape)}
	kernelTable[PromoteTypes(src.dtype, dt)].convert(conv, src)
	return gather[T](conv, shape)
}
