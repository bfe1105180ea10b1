package tensor

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCat(t *testing.T) {
	z := must.M1(Zeros(Shape{1, 9}, Float32))
	defer z.Dispose()
	o := must.M1(Ones(Shape{1, 9}, Float32))
	defer o.Dispose()

	got, err := Cat([]*Tensor{z, o}, 0)
	require.NoError(t, err)
	defer got.Dispose()
	assert.Equal(t, Shape{2, 9}, got.Shape())
	assert.Equal(t, Float32, got.DType())
	vals := must.M1(got.Float64s())
	assert.Equal(t, 0.0, sum(vals[:9]))
	assert.Equal(t, 9.0, sum(vals[9:]))

	cols, err := Cat([]*Tensor{z, o, z}, -1)
	require.NoError(t, err)
	defer cols.Dispose()
	assert.Equal(t, Shape{1, 27}, cols.Shape())
}

func TestCat_PromotesAndCopies(t *testing.T) {
	a := must.M1(FromBuffer([]int8{1, 2}, Shape{2}))
	defer a.Dispose()
	b := must.M1(FromBuffer([]float32{0.5}, Shape{1}))
	defer b.Dispose()

	got := must.M1(Cat([]*Tensor{a, b}, 0))
	defer got.Dispose()
	assert.Equal(t, Float32, got.DType())
	assert.Equal(t, []float64{1, 2, 0.5}, must.M1(got.Float64s()))
	assert.NotSame(t, a.Storage(), got.Storage())
}

func TestCat_Errors(t *testing.T) {
	a := must.M1(Zeros(Shape{2, 3}, Float32))
	defer a.Dispose()
	b := must.M1(Zeros(Shape{2, 4}, Float32))
	defer b.Dispose()
	c := must.M1(Zeros(Shape{6}, Float32))
	defer c.Dispose()

	_, err := Cat(nil, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Cat([]*Tensor{a, b}, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Cat([]*Tensor{a, c}, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Cat([]*Tensor{a, b}, 2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	ok := must.M1(Cat([]*Tensor{a, b}, 1))
	defer ok.Dispose()
	assert.Equal(t, Shape{2, 7}, ok.Shape())
}

func TestStack(t *testing.T) {
	a := must.M1(Zeros(Shape{2, 9}, Float64))
	defer a.Dispose()
	b := must.M1(Ones(Shape{2, 9}, Float64))
	defer b.Dispose()

	got := must.M1(Stack([]*Tensor{a, b}, 0))
	defer got.Dispose()
	assert.Equal(t, Shape{2, 2, 9}, got.Shape())
	second := must.M1(got.Get(1))
	defer second.Dispose()
	assert.True(t, must.M1(second.Equal(b)))

	last := must.M1(Stack([]*Tensor{a, b}, 2))
	defer last.Dispose()
	assert.Equal(t, Shape{2, 9, 2}, last.Shape())

	c := must.M1(Zeros(Shape{9, 2}, Float64))
	defer c.Dispose()
	_, err := Stack([]*Tensor{a, c}, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestStack_Scalars(t *testing.T) {
	var scalars []*Tensor
	for _, v := range []int32{4, 5, 6} {
		scalars = append(scalars, must.M1(FromScalar(v)))
	}
	defer disposeAll(scalars)

	got := must.M1(Stack(scalars, 0))
	defer got.Dispose()
	assert.Equal(t, Shape{3}, got.Shape())
	assert.Equal(t, []int64{4, 5, 6}, must.M1(got.Int64s()))
}

func TestReshape(t *testing.T) {
	x := must.M1(Arange(0, 12, 1, Int64))
	defer x.Dispose()

	r := must.M1(x.Reshape(3, -1))
	defer r.Dispose()
	assert.Equal(t, Shape{3, 4}, r.Shape())
	assert.Same(t, x.Storage(), r.Storage())

	tr := must.M1(r.Transpose(0, 1))
	defer tr.Dispose()
	_, err := tr.Reshape(-1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	c := must.M1(tr.Contiguous())
	defer c.Dispose()
	flat := must.M1(c.Reshape(-1))
	defer flat.Dispose()
	assert.Equal(t, []int64{0, 4, 8, 1, 5, 9, 2, 6, 10, 3, 7, 11}, must.M1(flat.Int64s()))
}

func TestExpand(t *testing.T) {
	x := must.M1(FromBuffer([]float32{1, 2}, Shape{2}))
	defer x.Dispose()

	e := must.M1(x.Expand(3, 2))
	defer e.Dispose()
	assert.Equal(t, Shape{3, 2}, e.Shape())
	assert.Equal(t, []int{0, 1}, e.Strides())
	assert.Equal(t, []float64{1, 2, 1, 2, 1, 2}, must.M1(e.Float64s()))

	_, err := x.Expand(3)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSqueezeAfterExpand(t *testing.T) {
	x := must.M1(FromBuffer([]float32{1, 2, 3}, Shape{3}))
	defer x.Dispose()
	e := must.M1(x.Expand(1, 1, 3))
	defer e.Dispose()
	assert.Equal(t, Shape{1, 1, 3}, e.Shape())

	s := must.M1(e.Squeeze())
	defer s.Dispose()
	assert.Equal(t, Shape{3}, s.Shape())
	assert.Equal(t, []float64{1, 2, 3}, must.M1(s.Float64s()))

	s0 := must.M1(e.Squeeze(0))
	defer s0.Dispose()
	assert.Equal(t, Shape{1, 3}, s0.Shape())

	same := must.M1(e.Squeeze(2))
	defer same.Dispose()
	assert.Equal(t, Shape{1, 1, 3}, same.Shape())
}

func TestNarrow(t *testing.T) {
	x := must.M1(Arange(0, 8, 1, Int16))
	defer x.Dispose()
	m := must.M1(x.Reshape(4, 2))
	defer m.Dispose()

	n := must.M1(m.Narrow(0, 1, 2))
	defer n.Dispose()
	assert.Equal(t, Shape{2, 2}, n.Shape())
	assert.Equal(t, 2, n.Offset())
	assert.Equal(t, []int64{2, 3, 4, 5}, must.M1(n.Int64s()))

	_, err := m.Narrow(0, 3, 2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSlice(t *testing.T) {
	x := must.M1(Arange(0, 5, 1, Float32))
	defer x.Dispose()

	empty := must.M1(x.Slice(0, 1, 1, 1))
	defer empty.Dispose()
	assert.Equal(t, Shape{0}, empty.Shape())
	assert.Empty(t, must.M1(empty.Float64s()))

	one := must.M1(x.Slice(0, 1, 2, 1))
	defer one.Dispose()
	assert.Equal(t, Shape{1}, one.Shape())
	assert.Equal(t, []float64{1}, must.M1(one.Float64s()))

	even := must.M1(x.Slice(0, 0, 5, 2))
	defer even.Dispose()
	assert.Equal(t, []float64{0, 2, 4}, must.M1(even.Float64s()))
	assert.False(t, even.IsContiguous())
}

func TestSplit(t *testing.T) {
	x := must.M1(Arange(0, 6, 1, Int32))
	defer x.Dispose()
	m := must.M1(x.Reshape(3, 2))
	defer m.Dispose()

	parts, err := m.Split(0, 2, 1)
	require.NoError(t, err)
	defer disposeAll(parts)
	require.Len(t, parts, 2)
	assert.Equal(t, Shape{2, 2}, parts[0].Shape())
	assert.Equal(t, Shape{1, 2}, parts[1].Shape())
	assert.Equal(t, []int64{4, 5}, must.M1(parts[1].Int64s()))

	_, err = m.Split(0, 1, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	chunks, err := m.Chunk(0, 2)
	require.NoError(t, err)
	defer disposeAll(chunks)
	require.Len(t, chunks, 2)
	assert.Equal(t, Shape{1, 2}, chunks[1].Shape())
}

func TestUnbind(t *testing.T) {
	x := must.M1(FromBuffer([]float64{1, 2, 3, 4, 5, 6}, Shape{3, 2}))
	defer x.Dispose()

	rows, err := x.Unbind(0)
	require.NoError(t, err)
	defer disposeAll(rows)
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, Shape{2}, r.Shape())
		assert.Equal(t, []float64{float64(2*i + 1), float64(2*i + 2)}, must.M1(r.Float64s()))
	}

	cols, err := x.Unbind(1)
	require.NoError(t, err)
	defer disposeAll(cols)
	require.Len(t, cols, 2)
	assert.Equal(t, Shape{3}, cols[0].Shape())
	assert.Equal(t, []float64{2, 4, 6}, must.M1(cols[1].Float64s()))
}

func TestPermuteUnsqueeze(t *testing.T) {
	x := must.M1(Arange(0, 24, 1, Float32))
	defer x.Dispose()
	c := must.M1(x.Reshape(2, 3, 4))
	defer c.Dispose()

	p := must.M1(c.Permute(2, 0, 1))
	defer p.Dispose()
	assert.Equal(t, Shape{4, 2, 3}, p.Shape())
	el := must.M1(p.Get(3, 1, 2))
	defer el.Dispose()
	assert.Equal(t, 23.0, must.M1(el.Float64()))

	u := must.M1(c.Unsqueeze(-1))
	defer u.Dispose()
	assert.Equal(t, Shape{2, 3, 4, 1}, u.Shape())
}
