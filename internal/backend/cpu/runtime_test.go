package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/backend"
)

func TestRuntime_Registered(t *testing.T) {
	rt, err := backend.Lookup(backend.Host)
	require.NoError(t, err)
	assert.Same(t, Default, rt)
	assert.Equal(t, "host", rt.Name())
	assert.Equal(t, 1, rt.NumDevices())
}

func TestRuntime_AllocateHeap(t *testing.T) {
	rt := New()
	buf, err := rt.Allocate(0, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, buf.Len())
	assert.Equal(t, make([]byte, 64), buf.Bytes())
	assert.EqualValues(t, 64, rt.LiveBytes())
	assert.EqualValues(t, 0, rt.MappedBuffers())

	require.NoError(t, buf.WriteAt([]byte{1, 2, 3}, 10))
	got := make([]byte, 3)
	require.NoError(t, buf.ReadAt(got, 10))
	assert.Equal(t, []byte{1, 2, 3}, got)
	assert.ErrorIs(t, buf.ReadAt(got, 62), backend.ErrIndexOutOfRange)

	require.NoError(t, buf.Free())
	assert.EqualValues(t, 0, rt.LiveBytes())
	assert.Error(t, buf.Free())
}

func TestRuntime_AllocateMapped(t *testing.T) {
	t.Setenv("TENSORCORE_MMAP_THRESHOLD", "4096")
	rt := New()
	buf, err := rt.Allocate(0, 1<<16)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rt.MappedBuffers())

	raw := buf.Bytes()
	require.Len(t, raw, 1<<16)
	assert.Zero(t, raw[len(raw)-1])
	raw[len(raw)-1] = 7
	got := make([]byte, 1)
	require.NoError(t, buf.ReadAt(got, len(raw)-1))
	assert.Equal(t, byte(7), got[0])

	require.NoError(t, buf.Free())
	assert.EqualValues(t, 0, rt.MappedBuffers())
	assert.EqualValues(t, 0, rt.LiveBytes())
}

func TestRuntime_MemoryLimit(t *testing.T) {
	t.Setenv("TENSORCORE_HOST_MEMORY_LIMIT", "1KiB")
	rt := New()
	a, err := rt.Allocate(0, 1000)
	require.NoError(t, err)

	_, err = rt.Allocate(0, 100)
	assert.ErrorIs(t, err, backend.ErrOutOfMemory)
	assert.EqualValues(t, 1000, rt.LiveBytes())

	require.NoError(t, a.Free())
	b, err := rt.Allocate(0, 100)
	require.NoError(t, err)
	require.NoError(t, b.Free())
}

func TestRuntime_BadOrdinal(t *testing.T) {
	_, err := New().Allocate(1, 8)
	assert.ErrorIs(t, err, backend.ErrDeviceUnavailable)
}

func TestBuffer_CopyFrom(t *testing.T) {
	rt := New()
	src, err := rt.Allocate(0, 4)
	require.NoError(t, err)
	copy(src.Bytes(), []byte{9, 8, 7, 6})
	dst, err := rt.Allocate(0, 4)
	require.NoError(t, err)

	require.NoError(t, dst.(backend.Copier).CopyFrom(src))
	assert.Equal(t, []byte{9, 8, 7, 6}, dst.Bytes())
	require.NoError(t, src.Free())
	require.NoError(t, dst.Free())
}
