// Package backend defines the narrow memory interface tensors use to reach
// device memory, and the registry of device runtimes.
package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DeviceType is the kind of memory a device exposes.
type DeviceType int

// Device types.
const (
	CPU DeviceType = iota
	Accelerator
)

// String returns the lower-case device type name.
func (t DeviceType) String() string {
	switch t {
	case CPU:
		return "cpu"
	case Accelerator:
		return "accelerator"
	default:
		return fmt.Sprintf("DeviceType(%d)", int(t))
	}
}

// Device identifies a concrete device: its type and ordinal.
type Device struct {
	Type  DeviceType
	Index int
}

// Host is the single host device.
var Host = Device{Type: CPU}

// String returns "cpu" for the host and "accelerator:N" otherwise.
func (d Device) String() string {
	if d.Type == CPU {
		return "cpu"
	}
	return fmt.Sprintf("%s:%d", d.Type, d.Index)
}

// IsHost reports whether d is the host device.
func (d Device) IsHost() bool {
	return d.Type == CPU
}

// Buffer is a block of device memory owned by a Runtime.
//
// Buffers are not safe for concurrent writes; callers serialize access
// through the owning storage.
type Buffer interface {
	// Len returns the size of the buffer in bytes.
	Len() int

	// Bytes returns the buffer contents when the memory is host-visible,
	// or nil when it must be reached through ReadAt/WriteAt.
	Bytes() []byte

	// ReadAt copies len(dst) bytes starting at off into dst.
	ReadAt(dst []byte, off int) error

	// WriteAt copies src into the buffer starting at off.
	WriteAt(src []byte, off int) error

	// Free releases the memory. It must be called exactly once.
	Free() error
}

// Copier is implemented by buffers that can copy from another buffer of
// the same runtime without staging through host memory.
type Copier interface {
	CopyFrom(src Buffer) error
}

// Runtime allocates memory for one device type.
type Runtime interface {
	// Name identifies the implementation, e.g. "host" or "webgpu".
	Name() string

	// DeviceType returns the type of devices served.
	DeviceType() DeviceType

	// NumDevices returns how many ordinals are usable.
	NumDevices() int

	// Allocate returns a zero-filled buffer of size bytes on device ordinal.
	Allocate(ordinal, size int) (Buffer, error)

	// Synchronize blocks until every pending transfer on ordinal completed.
	Synchronize(ordinal int) error
}

var (
	registryMu sync.RWMutex
	registry   = map[DeviceType]Runtime{}
)

// Register installs rt as the runtime of its device type, replacing any
// previous one. It returns the replaced runtime, or nil.
func Register(rt Runtime) Runtime {
	registryMu.Lock()
	defer registryMu.Unlock()
	prev := registry[rt.DeviceType()]
	registry[rt.DeviceType()] = rt
	klog.V(2).Infof("backend: registered %s runtime %q with %d device(s)", rt.DeviceType(), rt.Name(), rt.NumDevices())
	return prev
}

// Unregister removes the runtime for the device type, if any.
func Unregister(t DeviceType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, t)
}

// Registered reports whether a runtime serves device type t.
func Registered(t DeviceType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[t]
	return ok
}

// Lookup returns the runtime serving dev, or ErrDeviceUnavailable when no
// runtime is registered or the ordinal is out of range.
func Lookup(dev Device) (Runtime, error) {
	registryMu.RLock()
	rt, ok := registry[dev.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "no %s runtime registered", dev.Type)
	}
	if dev.Index < 0 || dev.Index >= rt.NumDevices() {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "%s: runtime %q has %d device(s)", dev, rt.Name(), rt.NumDevices())
	}
	return rt, nil
}

// Runtimes returns the registered runtimes ordered by device type.
func Runtimes() []Runtime {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Runtime, 0, len(registry))
	for _, rt := range registry {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceType() < out[j].DeviceType() })
	return out
}
