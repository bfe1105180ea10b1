package simulated

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/backend"
)

func TestRuntime_WriteThenRead(t *testing.T) {
	rt := New(2)
	defer rt.Close()

	buf, err := rt.Allocate(1, 16)
	require.NoError(t, err)
	assert.Nil(t, buf.Bytes(), "device memory is not host-visible")

	for i := 0; i < 16; i++ {
		require.NoError(t, buf.WriteAt([]byte{byte(i)}, i))
	}
	require.NoError(t, rt.Synchronize(1))

	got := make([]byte, 16)
	require.NoError(t, buf.ReadAt(got, 0))
	for i, v := range got {
		assert.Equal(t, byte(i), v)
	}
	assert.EqualValues(t, 16, rt.LiveBytes())
	require.NoError(t, buf.Free())
	assert.EqualValues(t, 0, rt.LiveBytes())
	assert.ErrorIs(t, buf.ReadAt(got, 0), backend.ErrDisposedHandle)
}

func TestRuntime_WriteCopiesSource(t *testing.T) {
	rt := New(1)
	defer rt.Close()
	buf, err := rt.Allocate(0, 3)
	require.NoError(t, err)

	src := []byte{1, 2, 3}
	require.NoError(t, buf.WriteAt(src, 0))
	src[0] = 99

	got := make([]byte, 3)
	require.NoError(t, buf.ReadAt(got, 0))
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestRuntime_CopyFrom(t *testing.T) {
	rt := New(2)
	defer rt.Close()
	a, err := rt.Allocate(0, 4)
	require.NoError(t, err)
	b, err := rt.Allocate(1, 4)
	require.NoError(t, err)

	require.NoError(t, a.WriteAt([]byte{4, 3, 2, 1}, 0))
	require.NoError(t, b.(backend.Copier).CopyFrom(a))
	got := make([]byte, 4)
	require.NoError(t, b.ReadAt(got, 0))
	assert.Equal(t, []byte{4, 3, 2, 1}, got)
}

func TestRuntime_Errors(t *testing.T) {
	rt := New(1, WithMemoryLimit(8))
	defer rt.Close()

	_, err := rt.Allocate(1, 4)
	assert.ErrorIs(t, err, backend.ErrDeviceUnavailable)

	_, err = rt.Allocate(0, 9)
	assert.ErrorIs(t, err, backend.ErrOutOfMemory)

	buf, err := rt.Allocate(0, 8)
	require.NoError(t, err)
	assert.ErrorIs(t, buf.WriteAt([]byte{1}, 8), backend.ErrIndexOutOfRange)
}

func TestInstall(t *testing.T) {
	rt, restore := Install(3)
	got, err := backend.Lookup(backend.Device{Type: backend.Accelerator, Index: 2})
	require.NoError(t, err)
	assert.Same(t, rt, got)

	_, err = backend.Lookup(backend.Device{Type: backend.Accelerator, Index: 3})
	assert.ErrorIs(t, err, backend.ErrDeviceUnavailable)

	restore()
	_, err = backend.Lookup(backend.Device{Type: backend.Accelerator})
	assert.ErrorIs(t, err, backend.ErrDeviceUnavailable)
}
