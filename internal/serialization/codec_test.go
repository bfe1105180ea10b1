package serialization

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/backend/simulated"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func TestSaveFile_RoundTripOnes(t *testing.T) {
	for _, dt := range []tensor.DataType{tensor.Float64, tensor.Float32} {
		t.Run(dt.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ones.bin")
			ones := must.M1(tensor.Ones(tensor.Shape{5, 6}, dt))
			defer ones.Dispose()

			require.NoError(t, SaveFile(path, ones))
			loaded, err := LoadFile(path)
			require.NoError(t, err)
			defer loaded.Dispose()

			assert.Equal(t, dt, loaded.DType())
			assert.Equal(t, tensor.Shape{5, 6}, loaded.Shape())
			assert.True(t, must.M1(loaded.Equal(ones)))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.EqualValues(t, 1+4+2*8+30*dt.Size(), info.Size())
		})
	}
}

func TestSave_RoundTripAllKinds(t *testing.T) {
	for _, dt := range tensor.DataTypes {
		t.Run(dt.String(), func(t *testing.T) {
			src := must.M1(tensor.Arange(0, 6, 1, dt))
			defer src.Dispose()
			shaped := must.M1(src.Reshape(2, 3))
			defer shaped.Dispose()

			var buf bytes.Buffer
			require.NoError(t, Save(&buf, shaped))
			loaded, err := Load(&buf)
			require.NoError(t, err)
			defer loaded.Dispose()

			assert.Equal(t, dt, loaded.DType())
			assert.Equal(t, tensor.Shape{2, 3}, loaded.Shape())
			assert.Equal(t, must.M1(shaped.Float64s()), must.M1(loaded.Float64s()))
			assert.Zero(t, buf.Len())
		})
	}
}

func TestSave_ExactBytes(t *testing.T) {
	src := must.M1(tensor.FromBuffer([]int16{1, -2, 3}, tensor.Shape{3, 1}))
	defer src.Dispose()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, src))
	want := []byte{
		byte(tensor.Int16),
		2, 0, 0, 0,
		3, 0, 0, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0,
		1, 0, 0xfe, 0xff, 3, 0,
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestSave_ScalarAndEmpty(t *testing.T) {
	scalar := must.M1(tensor.FromScalar(2.5))
	defer scalar.Dispose()
	empty := must.M1(tensor.Zeros(tensor.Shape{0, 4}, tensor.Int32))
	defer empty.Dispose()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, scalar))
	require.NoError(t, Save(&buf, empty))
	assert.Equal(t, 1+4+8+1+4+16, buf.Len())

	got := must.M1(Load(&buf))
	defer got.Dispose()
	assert.Equal(t, 0, got.Rank())
	assert.Equal(t, 2.5, must.M1(got.Float64()))

	got2 := must.M1(Load(&buf))
	defer got2.Dispose()
	assert.Equal(t, tensor.Shape{0, 4}, got2.Shape())
	assert.Equal(t, tensor.Int32, got2.DType())
}

func TestSave_NonContiguous(t *testing.T) {
	src := must.M1(tensor.FromBuffer([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	defer src.Dispose()
	tr := must.M1(src.Transpose(0, 1))
	defer tr.Dispose()
	require.False(t, tr.IsContiguous())

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, tr))
	got := must.M1(Load(&buf))
	defer got.Dispose()
	assert.Equal(t, tensor.Shape{3, 2}, got.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, must.M1(got.Float64s()))
}

func TestSave_FromAccelerator(t *testing.T) {
	_, restore := simulated.Install(1)
	defer restore()

	src := must.M1(tensor.Arange(0, 4, 1, tensor.Float32, tensor.OnDevice(tensor.AcceleratorDevice(0))))
	defer src.Dispose()

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, src))
	got := must.M1(Load(&buf))
	defer got.Dispose()
	assert.Equal(t, tensor.CPU, got.Device())
	assert.Equal(t, []float64{0, 1, 2, 3}, must.M1(got.Float64s()))
}

func header(kind byte, dims ...int64) []byte {
	out := []byte{kind}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(dims)))
	for _, d := range dims {
		out = binary.LittleEndian.AppendUint64(out, uint64(d))
	}
	return out
}

func TestLoad_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short prefix", []byte{6, 1}},
		{"unknown kind", header(42, 2)},
		{"rank too large", header(byte(tensor.Float32), make([]int64, MaxRank+1)...)},
		{"truncated dims", header(byte(tensor.Float32), 2, 3)[:10]},
		{"negative dim", header(byte(tensor.Float32), -1)},
		{"overflow", header(byte(tensor.Float64), 1<<40, 1<<40)},
		{"truncated payload", append(header(byte(tensor.Int32), 2), 1, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tensor.ErrSerializationFormat)
			var fe *FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestLoadFile_TrailingBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trailing.bin")
	data := append(header(byte(tensor.Uint8), 2), 7, 8, 9)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, tensor.ErrSerializationFormat)

	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0o600))
	got, err := LoadFile(path)
	require.NoError(t, err)
	defer got.Dispose()
	assert.Equal(t, []int64{7, 8}, must.M1(got.Int64s()))
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFile(filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = LoadFile(empty)
	assert.ErrorIs(t, err, tensor.ErrSerializationFormat)
}

func TestSave_Disposed(t *testing.T) {
	src := must.M1(tensor.Zeros(tensor.Shape{2}, tensor.Float32))
	src.Dispose()
	var buf bytes.Buffer
	assert.ErrorIs(t, Save(&buf, src), tensor.ErrDisposedHandle)
	assert.Zero(t, buf.Len())
}
