package tensor

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// Layout maps a logical index onto storage: element [i0, i1, ...] lives at
// Offset + sum(i_k * Stride[k]). Every view operation is a pure function
// from one Layout to another; none of them touch memory.
type Layout struct {
	Shape  Shape
	Stride []int
	Offset int
}

// ContiguousLayout returns the row-major layout of shape at offset 0.
func ContiguousLayout(shape Shape) Layout {
	return Layout{Shape: shape.Clone(), Stride: ContiguousStrides(shape)}
}

// Rank returns the number of dimensions.
func (l Layout) Rank() int { return len(l.Shape) }

// IsContiguous reports whether the layout is row-major.
func (l Layout) IsContiguous() bool { return IsContiguous(l.Shape, l.Stride) }

func (l Layout) clone() Layout {
	return Layout{Shape: l.Shape.Clone(), Stride: append([]int(nil), l.Stride...), Offset: l.Offset}
}

// span returns the lowest and one past the highest element offset
// addressed. Empty layouts address nothing and return (Offset, Offset).
func (l Layout) span() (lo, hi int) {
	if l.Shape.NumElements() == 0 {
		return l.Offset, l.Offset
	}
	lo, hi = l.Offset, l.Offset
	for i, dim := range l.Shape {
		ext := (dim - 1) * l.Stride[i]
		if ext < 0 {
			lo += ext
		} else {
			hi += ext
		}
	}
	return lo, hi + 1
}

// overlaps reports whether two logical positions share one element, which
// happens when a dimension longer than one has stride zero.
func (l Layout) overlaps() bool {
	for i, dim := range l.Shape {
		if dim > 1 && l.Stride[i] == 0 {
			return true
		}
	}
	return false
}

// ElementOffset resolves a full index to a storage element offset.
func (l Layout) ElementOffset(idx ...int) (int, error) {
	if len(idx) != len(l.Shape) {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "index %v has %d entries for rank %d", idx, len(idx), len(l.Shape))
	}
	off := l.Offset
	for i, v := range idx {
		if v < 0 || v >= l.Shape[i] {
			return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d out of range [0, %d) in dimension %d", v, l.Shape[i], i)
		}
		off += v * l.Stride[i]
	}
	return off, nil
}

// Select drops dimension dim, fixing it at index.
func (l Layout) Select(dim, index int) (Layout, error) {
	dim, err := normalizeDim(dim, l.Rank())
	if err != nil {
		return Layout{}, err
	}
	if index < 0 || index >= l.Shape[dim] {
		return Layout{}, errors.Wrapf(ErrIndexOutOfRange, "index %d out of range [0, %d) in dimension %d", index, l.Shape[dim], dim)
	}
	out := Layout{Offset: l.Offset + index*l.Stride[dim]}
	out.Shape = append(append(Shape{}, l.Shape[:dim]...), l.Shape[dim+1:]...)
	out.Stride = append(append([]int{}, l.Stride[:dim]...), l.Stride[dim+1:]...)
	return out, nil
}

// Reshape reinterprets the elements under newShape. One dimension may be -1
// and is inferred. Only layouts whose non-trivial dimensions are row-major
// can be reshaped without copying.
func (l Layout) Reshape(newShape ...int) (Layout, error) {
	shape, err := inferShape(newShape, l.Shape.NumElements())
	if err != nil {
		return Layout{}, err
	}
	if !l.IsContiguous() {
		return Layout{}, errors.Wrapf(ErrShapeMismatch, "cannot reshape non-contiguous layout %v (strides %v) to %v without a copy",
			l.Shape, l.Stride, shape)
	}
	return Layout{Shape: shape, Stride: ContiguousStrides(shape), Offset: l.Offset}, nil
}

func inferShape(dims []int, numel int) (Shape, error) {
	shape := make(Shape, len(dims))
	infer := -1
	known := 1
	for i, d := range dims {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d < 0:
			return nil, errors.Wrapf(ErrShapeMismatch, "invalid dimension %d in %v", d, dims)
		default:
			shape[i] = d
		}
	}
	for i, d := range shape {
		if i == infer {
			continue
		}
		hi, lo := bits.Mul64(uint64(known), uint64(d))
		if hi != 0 || lo > math.MaxInt {
			return nil, errors.Wrapf(ErrShapeMismatch, "shape %v has more elements than can be addressed", dims)
		}
		known = int(lo)
	}
	if infer >= 0 {
		if known == 0 || numel%known != 0 {
			return nil, errors.Wrapf(ErrShapeMismatch, "cannot infer dimension of %v for %d elements", dims, numel)
		}
		shape[infer] = numel / known
	} else if known != numel {
		return nil, errors.Wrapf(ErrShapeMismatch, "shape %v has %d elements, want %d", dims, known, numel)
	}
	return shape, nil
}

// Expand broadcasts the layout to target without copying: new leading
// dimensions and stretched size-1 dimensions get stride 0. A target
// dimension of -1 keeps the existing size.
func (l Layout) Expand(target ...int) (Layout, error) {
	if len(target) < l.Rank() {
		return Layout{}, errors.Wrapf(ErrShapeMismatch, "cannot expand %v to fewer dimensions %v", l.Shape, target)
	}
	lead := len(target) - l.Rank()
	out := Layout{Shape: make(Shape, len(target)), Stride: make([]int, len(target)), Offset: l.Offset}
	for i, t := range target {
		j := i - lead
		if j < 0 {
			if t < 0 {
				return Layout{}, errors.Wrapf(ErrShapeMismatch, "expand: new dimension %d must be non-negative, got %d", i, t)
			}
			out.Shape[i] = t
			continue
		}
		switch src := l.Shape[j]; {
		case t == -1 || t == src:
			out.Shape[i], out.Stride[i] = src, l.Stride[j]
		case src == 1 && t >= 0:
			out.Shape[i] = t
		default:
			return Layout{}, errors.Wrapf(ErrShapeMismatch, "expand: size %d of dimension %d cannot become %d", src, j, t)
		}
	}
	if _, ok := countElements(out.Shape); !ok {
		return Layout{}, errors.Wrapf(ErrShapeMismatch, "expand: %v has more elements than can be addressed", out.Shape)
	}
	return out, nil
}

// Narrow restricts dimension dim to [start, start+length).
func (l Layout) Narrow(dim, start, length int) (Layout, error) {
	dim, err := normalizeDim(dim, l.Rank())
	if err != nil {
		return Layout{}, err
	}
	size := l.Shape[dim]
	if start < 0 {
		start += size
	}
	if start < 0 || length < 0 || start+length > size {
		return Layout{}, errors.Wrapf(ErrIndexOutOfRange, "narrow [%d, %d) out of range for dimension %d of size %d",
			start, start+length, dim, size)
	}
	out := l.clone()
	out.Shape[dim] = length
	out.Offset += start * l.Stride[dim]
	return out, nil
}

// Slice keeps every step-th index of [start, end) along dim. Negative
// bounds count from the end and out-of-range bounds are clamped, so an
// empty range yields a zero-length dimension.
func (l Layout) Slice(dim, start, end, step int) (Layout, error) {
	dim, err := normalizeDim(dim, l.Rank())
	if err != nil {
		return Layout{}, err
	}
	if step <= 0 {
		return Layout{}, errors.Wrapf(ErrShapeMismatch, "slice step must be positive, got %d", step)
	}
	size := l.Shape[dim]
	if start < 0 {
		start += size
	}
	if end < 0 {
		end += size
	}
	start = min(max(start, 0), size)
	end = min(max(end, start), size)

	out := l.clone()
	out.Shape[dim] = (end - start + step - 1) / step
	out.Stride[dim] = l.Stride[dim] * step
	if out.Shape[dim] > 0 {
		out.Offset += start * l.Stride[dim]
	}
	return out, nil
}

// Squeeze removes the given size-1 dimensions; dimensions of another size
// are left in place. Without arguments every size-1 dimension is removed.
func (l Layout) Squeeze(dims ...int) (Layout, error) {
	drop := make([]bool, l.Rank())
	if len(dims) == 0 {
		for i, d := range l.Shape {
			drop[i] = d == 1
		}
	}
	for _, d := range dims {
		d, err := normalizeDim(d, l.Rank())
		if err != nil {
			return Layout{}, err
		}
		drop[d] = l.Shape[d] == 1
	}
	out := Layout{Shape: Shape{}, Stride: []int{}, Offset: l.Offset}
	for i := range l.Shape {
		if !drop[i] {
			out.Shape = append(out.Shape, l.Shape[i])
			out.Stride = append(out.Stride, l.Stride[i])
		}
	}
	return out, nil
}

// Unsqueeze inserts a size-1 dimension at dim, which may equal the rank.
func (l Layout) Unsqueeze(dim int) (Layout, error) {
	dim, err := normalizeDim(dim, l.Rank()+1)
	if err != nil {
		return Layout{}, err
	}
	stride := 1
	if dim < l.Rank() {
		stride = l.Stride[dim] * max(l.Shape[dim], 1)
	}
	out := Layout{Offset: l.Offset}
	out.Shape = append(append(append(Shape{}, l.Shape[:dim]...), 1), l.Shape[dim:]...)
	out.Stride = append(append(append([]int{}, l.Stride[:dim]...), stride), l.Stride[dim:]...)
	return out, nil
}

// Permute reorders dimensions: dimension i of the result is dims[i].
func (l Layout) Permute(dims ...int) (Layout, error) {
	if len(dims) != l.Rank() {
		return Layout{}, errors.Wrapf(ErrShapeMismatch, "permutation %v for rank %d", dims, l.Rank())
	}
	seen := make([]bool, l.Rank())
	out := Layout{Shape: make(Shape, l.Rank()), Stride: make([]int, l.Rank()), Offset: l.Offset}
	for i, d := range dims {
		d, err := normalizeDim(d, l.Rank())
		if err != nil {
			return Layout{}, err
		}
		if seen[d] {
			return Layout{}, errors.Wrapf(ErrShapeMismatch, "dimension %d repeated in permutation %v", d, dims)
		}
		seen[d] = true
		out.Shape[i], out.Stride[i] = l.Shape[d], l.Stride[d]
	}
	return out, nil
}

// Split cuts dim into consecutive pieces of the given sizes, which must
// add up to the size of dim.
func (l Layout) Split(dim int, sizes ...int) ([]Layout, error) {
	dim, err := normalizeDim(dim, l.Rank())
	if err != nil {
		return nil, err
	}
	total := 0
	for _, s := range sizes {
		if s < 0 {
			return nil, errors.Wrapf(ErrShapeMismatch, "negative split size in %v", sizes)
		}
		total += s
	}
	if total != l.Shape[dim] {
		return nil, errors.Wrapf(ErrShapeMismatch, "split sizes %v add up to %d, dimension %d has size %d",
			sizes, total, dim, l.Shape[dim])
	}
	out := make([]Layout, len(sizes))
	start := 0
	for i, s := range sizes {
		out[i], _ = l.Narrow(dim, start, s)
		start += s
	}
	return out, nil
}

// Chunk splits dim into n pieces of equal size, the last one possibly
// smaller. Fewer than n pieces are returned when dim is too short.
func (l Layout) Chunk(dim, n int) ([]Layout, error) {
	d, err := normalizeDim(dim, l.Rank())
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "chunk count must be positive, got %d", n)
	}
	size := l.Shape[d]
	each := max((size+n-1)/n, 1)
	var sizes []int
	for rest := size; rest > 0; rest -= each {
		sizes = append(sizes, min(each, rest))
	}
	if size == 0 {
		sizes = []int{0}
	}
	return l.Split(d, sizes...)
}

// Unbind returns one layout per index of dim, each with dim removed.
func (l Layout) Unbind(dim int) ([]Layout, error) {
	dim, err := normalizeDim(dim, l.Rank())
	if err != nil {
		return nil, err
	}
	out := make([]Layout, l.Shape[dim])
	for i := range out {
		out[i], _ = l.Select(dim, i)
	}
	return out, nil
}
