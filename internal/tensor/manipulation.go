package tensor

import (
	"github.com/pkg/errors"
)

// Reshape returns a view with newShape; one dimension may be -1. The
// tensor must be contiguous, otherwise ErrShapeMismatch is returned and
// the caller can reshape a Contiguous copy instead.
func (t *Tensor) Reshape(newShape ...int) (*Tensor, error) {
	return t.layoutView("reshape", func(l Layout) (Layout, error) { return l.Reshape(newShape...) })
}

// Expand returns a broadcast view of shape; -1 keeps a dimension.
func (t *Tensor) Expand(shape ...int) (*Tensor, error) {
	return t.layoutView("expand", func(l Layout) (Layout, error) { return l.Expand(shape...) })
}

// Narrow returns the view of [start, start+length) along dim.
func (t *Tensor) Narrow(dim, start, length int) (*Tensor, error) {
	return t.layoutView("narrow", func(l Layout) (Layout, error) { return l.Narrow(dim, start, length) })
}

// Slice returns the view of every step-th index in [start, end) along dim.
func (t *Tensor) Slice(dim, start, end, step int) (*Tensor, error) {
	return t.layoutView("slice", func(l Layout) (Layout, error) { return l.Slice(dim, start, end, step) })
}

// Squeeze removes the given size-1 dimensions, or all of them when no
// dimension is given.
func (t *Tensor) Squeeze(dims ...int) (*Tensor, error) {
	return t.layoutView("squeeze", func(l Layout) (Layout, error) { return l.Squeeze(dims...) })
}

// Unsqueeze inserts a size-1 dimension at dim.
func (t *Tensor) Unsqueeze(dim int) (*Tensor, error) {
	return t.layoutView("unsqueeze", func(l Layout) (Layout, error) { return l.Unsqueeze(dim) })
}

// Permute reorders the dimensions.
func (t *Tensor) Permute(dims ...int) (*Tensor, error) {
	return t.layoutView("permute", func(l Layout) (Layout, error) { return l.Permute(dims...) })
}

// Transpose swaps two dimensions.
func (t *Tensor) Transpose(dim0, dim1 int) (*Tensor, error) {
	return t.layoutView("transpose", func(l Layout) (Layout, error) {
		d0, err := normalizeDim(dim0, l.Rank())
		if err != nil {
			return Layout{}, err
		}
		d1, err := normalizeDim(dim1, l.Rank())
		if err != nil {
			return Layout{}, err
		}
		perm := make([]int, l.Rank())
		for i := range perm {
			perm[i] = i
		}
		perm[d0], perm[d1] = d1, d0
		return l.Permute(perm...)
	})
}

func (t *Tensor) layoutView(op string, f func(Layout) (Layout, error)) (*Tensor, error) {
	if err := t.check(op); err != nil {
		return nil, err
	}
	l, err := f(t.layout.clone())
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}
	return t.view(op, l)
}

// Split cuts dim into views of the given sizes.
func (t *Tensor) Split(dim int, sizes ...int) ([]*Tensor, error) {
	return t.layoutViews("split", func(l Layout) ([]Layout, error) { return l.Split(dim, sizes...) })
}

// Chunk cuts dim into n views of equal size, the last possibly smaller.
func (t *Tensor) Chunk(dim, n int) ([]*Tensor, error) {
	return t.layoutViews("chunk", func(l Layout) ([]Layout, error) { return l.Chunk(dim, n) })
}

// Unbind returns one view per index of dim, each with dim removed.
func (t *Tensor) Unbind(dim int) ([]*Tensor, error) {
	return t.layoutViews("unbind", func(l Layout) ([]Layout, error) { return l.Unbind(dim) })
}

func (t *Tensor) layoutViews(op string, f func(Layout) ([]Layout, error)) ([]*Tensor, error) {
	if err := t.check(op); err != nil {
		return nil, err
	}
	layouts, err := f(t.layout.clone())
	if err != nil {
		return nil, errors.WithMessage(err, op)
	}
	out := make([]*Tensor, 0, len(layouts))
	for _, l := range layouts {
		v, err := t.view(op, l)
		if err != nil {
			disposeAll(out)
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func disposeAll(ts []*Tensor) {
	for _, t := range ts {
		t.Dispose()
	}
}

// Cat concatenates tensors along dim into new storage. All inputs share a
// rank, a device and every dimension but dim; the result kind is the
// promotion of the input kinds.
func Cat(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "cat: no tensors")
	}
	first := tensors[0]
	for _, t := range tensors {
		if err := t.check("cat"); err != nil {
			return nil, err
		}
	}
	d, err := normalizeDim(dim, first.Rank())
	if err != nil {
		return nil, errors.WithMessage(err, "cat")
	}

	shape := first.Shape()
	dt := first.DType()
	shape[d] = 0
	for i, t := range tensors {
		if t.Device() != first.Device() {
			return nil, errors.Wrapf(ErrDeviceMismatch, "cat: tensor %d on %s, tensor 0 on %s", i, t.Device(), first.Device())
		}
		if t.Rank() != first.Rank() {
			return nil, errors.Wrapf(ErrShapeMismatch, "cat: tensor %d has rank %d, want %d", i, t.Rank(), first.Rank())
		}
		for k, size := range t.layout.Shape {
			if k != d && size != first.layout.Shape[k] {
				return nil, errors.Wrapf(ErrShapeMismatch, "cat: tensor %d has shape %v, tensor 0 has %v", i, t.layout.Shape, first.layout.Shape)
			}
		}
		shape[d] += t.layout.Shape[d]
		dt = PromoteTypes(dt, t.DType())
	}

	out, err := empty(shape, dt, first.Device())
	if err != nil {
		return nil, errors.WithMessage(err, "cat")
	}
	start := 0
	for _, t := range tensors {
		size := t.layout.Shape[d]
		part, err := out.Narrow(d, start, size)
		if err == nil {
			err = copyInto("cat", part, t)
			part.Dispose()
		}
		if err != nil {
			out.Dispose()
			return nil, err
		}
		start += size
	}
	return out, nil
}

// Stack joins tensors of identical shape along a new dimension dim, which
// may equal their rank.
func Stack(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "stack: no tensors")
	}
	views := make([]*Tensor, 0, len(tensors))
	defer func() { disposeAll(views) }()
	for i, t := range tensors {
		if err := t.check("stack"); err != nil {
			return nil, err
		}
		if !t.layout.Shape.Equal(tensors[0].layout.Shape) {
			return nil, errors.Wrapf(ErrShapeMismatch, "stack: tensor %d has shape %v, tensor 0 has %v", i, t.layout.Shape, tensors[0].layout.Shape)
		}
		v, err := t.Unsqueeze(dim)
		if err != nil {
			return nil, errors.WithMessage(err, "stack")
		}
		views = append(views, v)
	}
	out, err := Cat(views, dim)
	if err != nil {
		return nil, errors.WithMessage(err, "stack")
	}
	return out, nil
}
