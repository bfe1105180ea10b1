package tensor

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_Kinds(t *testing.T) {
	x := must.M1(FromBuffer([]int32{1, 2, 3, 2147483647}, Shape{2, 2}))
	defer x.Dispose()

	s := must.M1(x.Sum())
	defer s.Dispose()
	assert.Equal(t, Int64, s.DType())
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, int64(2147483653), must.M1(s.Int64()))

	wrapped := must.M1(x.Sum(Int32))
	defer wrapped.Dispose()
	assert.Equal(t, Int32, wrapped.DType())
	assert.Equal(t, int32(-2147483643), must.M1(wrapped.Item()))

	f := must.M1(x.Sum(Float64))
	defer f.Dispose()
	assert.Equal(t, 2147483653.0, must.M1(f.Float64()))

	b := must.M1(FromBuffer([]bool{true, false, true}, Shape{3}))
	defer b.Dispose()
	n := must.M1(b.Sum())
	defer n.Dispose()
	assert.Equal(t, Int64, n.DType())
	assert.Equal(t, int64(2), must.M1(n.Int64()))

	_, err := x.Sum(Int32, Int64)
	assert.Error(t, err)
}

func TestSum_FloatKinds(t *testing.T) {
	x := must.M1(FromBuffer([]float32{0.5, 1.75, -3}, Shape{3}))
	defer x.Dispose()
	s := must.M1(x.Sum())
	defer s.Dispose()
	assert.Equal(t, Float32, s.DType())
	assert.Equal(t, -0.75, must.M1(s.Float64()))

	i := must.M1(x.Sum(Int64))
	defer i.Dispose()
	assert.Equal(t, int64(-2), must.M1(i.Int64()), "elements are truncated before summing")
}

func TestSum_EmptyAndStrided(t *testing.T) {
	e := must.M1(Zeros(Shape{0, 3}, Float64))
	defer e.Dispose()
	s := must.M1(e.Sum())
	defer s.Dispose()
	assert.Equal(t, 0.0, must.M1(s.Float64()))

	x := must.M1(Arange(0, 6, 1, Int16))
	defer x.Dispose()
	m := must.M1(x.Reshape(2, 3))
	defer m.Dispose()
	tr := must.M1(m.Transpose(0, 1))
	defer tr.Dispose()
	s2 := must.M1(tr.Sum())
	defer s2.Dispose()
	assert.Equal(t, int64(15), must.M1(s2.Int64()))
}

func TestSumDim(t *testing.T) {
	x := must.M1(FromBuffer([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3}))
	defer x.Dispose()

	rows := must.M1(x.SumDim(1, false))
	defer rows.Dispose()
	assert.Equal(t, Shape{2}, rows.Shape())
	assert.Equal(t, []float64{6, 15}, must.M1(rows.Float64s()))

	cols := must.M1(x.SumDim(0, true))
	defer cols.Dispose()
	assert.Equal(t, Shape{1, 3}, cols.Shape())
	assert.Equal(t, []float64{5, 7, 9}, must.M1(cols.Float64s()))

	last := must.M1(x.SumDim(-1, true, Int32))
	defer last.Dispose()
	assert.Equal(t, Shape{2, 1}, last.Shape())
	assert.Equal(t, Int32, last.DType())

	_, err := x.SumDim(2, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSumDim_ParallelRows(t *testing.T) {
	t.Setenv("TENSORCORE_MIN_CHUNK", "16")
	t.Setenv("TENSORCORE_NUM_THREADS", "4")

	x := must.M1(Arange(0, 3000, 1, Int32))
	defer x.Dispose()
	m := must.M1(x.Reshape(1000, 3))
	defer m.Dispose()
	rows := must.M1(m.SumDim(1, false))
	defer rows.Dispose()

	got := must.M1(rows.Int64s())
	require.Len(t, got, 1000)
	for r, v := range got {
		if want := int64(9*r + 3); v != want {
			t.Fatalf("row %d: got %d, want %d", r, v, want)
		}
	}
}
