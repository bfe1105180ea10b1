package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	devices int
}

func (f fakeRuntime) Name() string { return "fake" }
func (f fakeRuntime) DeviceType() DeviceType { return Accelerator }
func (f fakeRuntime) NumDevices() int { return f.devices }
func (f fakeRuntime) Allocate(int, int) (Buffer, error) { return nil, ErrOutOfMemory }
func (f fakeRuntime) Synchronize(int) error { return nil }

func TestDevice_String(t *testing.T) {
	assert.Equal(t, "cpu", Host.String())
	assert.Equal(t, "accelerator:1", Device{Type: Accelerator, Index: 1}.String())
	assert.True(t, Host.IsHost())
	assert.Equal(t, "DeviceType(9)", DeviceType(9).String())
}

func TestRegistry(t *testing.T) {
	_, err := Lookup(Device{Type: Accelerator})
	require.ErrorIs(t, err, ErrDeviceUnavailable)

	prev := Register(fakeRuntime{devices: 2})
	assert.Nil(t, prev)
	defer Unregister(Accelerator)

	rt, err := Lookup(Device{Type: Accelerator, Index: 1})
	require.NoError(t, err)
	assert.Equal(t, "fake", rt.Name())

	_, err = Lookup(Device{Type: Accelerator, Index: 2})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	_, err = Lookup(Device{Type: Accelerator, Index: -1})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	assert.Len(t, Runtimes(), 1)
}
