package cpu

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/backend"
	"github.com/born-ml/tensorcore/internal/parallel"
)

var seq = parallel.Config{}

func TestBinary_Int32(t *testing.T) {
	k := IntegerArith[int32]()
	a := []int32{7, -7, 7, -7, 6}
	b := []int32{3, 3, -3, -3, 4}

	tests := []struct {
		op   BinaryOp
		want []int32
	}{
		{Add, []int32{10, -4, 4, -10, 10}},
		{Sub, []int32{4, -10, 10, -4, 2}},
		{Mul, []int32{21, -21, -21, 21, 24}},
		{Div, []int32{2, -2, -2, 2, 1}},
		{Rem, []int32{1, 2, -2, -1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			dst := make([]int32, len(a))
			require.NoError(t, k.Binary(tt.op, dst, a, b, seq))
			if diff := cmp.Diff(tt.want, dst); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", tt.op, diff)
			}
		})
	}
}

func TestBinary_ZeroDivision(t *testing.T) {
	k := IntegerArith[int64]()
	dst := make([]int64, 2)
	err := k.Binary(Rem, dst, []int64{1, 2}, []int64{1, 0}, seq)
	assert.ErrorIs(t, err, backend.ErrZeroDivision)
	err = k.Binary(Div, dst, []int64{1, 2}, []int64{1, 0}, seq)
	assert.ErrorIs(t, err, backend.ErrZeroDivision)
}

func TestBinary_FloatRemainder(t *testing.T) {
	k := FloatArith[float64]()
	a := []float64{5.5, -5.5, 5.5, -5.5, 1}
	b := []float64{2, 2, -2, -2, 0}
	dst := make([]float64, len(a))
	require.NoError(t, k.Binary(Rem, dst, a, b, seq))
	assert.Equal(t, []float64{1.5, 0.5, -0.5, -1.5}, dst[:4])
	assert.True(t, math.IsNaN(dst[4]))
}

func TestBinary_FloatDivByZero(t *testing.T) {
	k := FloatArith[float32]()
	dst := make([]float32, 1)
	require.NoError(t, k.Binary(Div, dst, []float32{1}, []float32{0}, seq))
	assert.True(t, math.IsInf(float64(dst[0]), 1))
}

func TestBinary_Parallel(t *testing.T) {
	k := FloatArith[float32]()
	n := 10000
	a, b, dst := make([]float32, n), make([]float32, n), make([]float32, n)
	for i := range a {
		a[i], b[i] = float32(i), 1
	}
	cfg := parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 100}
	require.NoError(t, k.Binary(Add, dst, a, b, cfg))
	for i, v := range dst {
		if v != float32(i+1) {
			t.Fatalf("dst[%d] = %v", i, v)
		}
	}
}

func TestBinary_LengthMismatch(t *testing.T) {
	err := IntegerArith[uint8]().Binary(Add, make([]uint8, 2), []uint8{1}, []uint8{1, 2}, seq)
	assert.ErrorIs(t, err, backend.ErrShapeMismatch)
}

func TestCompare(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{2, 2, 2}
	want := map[CompareOp][]bool{
		Eq: {false, true, false},
		Ne: {true, false, true},
		Lt: {true, false, false},
		Le: {true, true, false},
		Gt: {false, false, true},
		Ge: {false, true, true},
	}
	for op, w := range want {
		t.Run(op.String(), func(t *testing.T) {
			dst := make([]bool, 3)
			require.NoError(t, Compare(op, dst, a, b, seq))
			assert.Equal(t, w, dst)
		})
	}
}

func TestSums(t *testing.T) {
	assert.Equal(t, int64(600), SumInt([]uint8{200, 200, 200}))
	assert.InDelta(t, 0.6, SumFloat([]float32{0.1, 0.2, 0.3}), 1e-6)
}
