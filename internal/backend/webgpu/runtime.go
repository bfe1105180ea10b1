//go:build windows

// Package webgpu implements accelerator memory on WebGPU through go-webgpu
// (zero-CGO bindings to wgpu-native).
package webgpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/backend"
)

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// Runtime owns one WebGPU device. Buffers are storage buffers reached
// through staging copies.
type Runtime struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Serializes queue submissions and buffer mapping.
	mu sync.Mutex

	live atomic.Int64
}

// New opens the high-performance adapter. It returns ErrDeviceUnavailable
// when the native library or a suitable adapter is missing.
func New() (rt *Runtime, err error) {
	// wgpu-native panics when its shared library cannot be loaded.
	defer func() {
		if r := recover(); r != nil {
			rt = nil
			err = errors.Wrapf(backend.ErrDeviceUnavailable, "webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrapf(backend.ErrDeviceUnavailable, "webgpu: request adapter: %v", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(backend.ErrDeviceUnavailable, "webgpu: request device: %v", err)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(backend.ErrDeviceUnavailable, "webgpu: device has no queue")
	}
	return &Runtime{instance: instance, adapter: adapter, device: device, queue: queue}, nil
}

// Name returns "webgpu".
func (r *Runtime) Name() string { return "webgpu" }

// DeviceType returns backend.Accelerator.
func (r *Runtime) DeviceType() backend.DeviceType { return backend.Accelerator }

// NumDevices returns 1: one adapter is opened per runtime.
func (r *Runtime) NumDevices() int { return 1 }

// LiveBytes returns the bytes held by live buffers.
func (r *Runtime) LiveBytes() int64 { return r.live.Load() }

// Synchronize waits for submitted work by mapping an empty staging buffer,
// which completes only after every prior submission.
func (r *Runtime) Synchronize(int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fence := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  4,
	})
	defer fence.Release()
	if err := fence.MapAsync(r.device, wgpu.MapModeRead, 0, 4); err != nil {
		return errors.Wrap(err, "webgpu: synchronize")
	}
	fence.Unmap()
	return nil
}

// Allocate creates a zero-initialized storage buffer.
func (r *Runtime) Allocate(ordinal, size int) (backend.Buffer, error) {
	if ordinal != 0 {
		return nil, errors.Wrapf(backend.ErrDeviceUnavailable, "webgpu: no device %d", ordinal)
	}
	padded := align4(size)
	if padded == 0 {
		padded = 4
	}
	buf, err := r.createBuffer(padded)
	if err != nil {
		return nil, err
	}
	r.live.Add(int64(padded))
	klog.V(3).Infof("webgpu: allocated %s", humanize.IBytes(uint64(padded)))
	return &deviceBuffer{rt: r, buf: buf, size: size, padded: padded}, nil
}

func (r *Runtime) createBuffer(size int) (buf *wgpu.Buffer, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(backend.ErrOutOfMemory, "webgpu: allocating %s: %v", humanize.IBytes(uint64(size)), p)
		}
	}()
	buf = r.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: storageUsage, Size: uint64(size)})
	if buf == nil {
		return nil, errors.Wrapf(backend.ErrOutOfMemory, "webgpu: allocating %s", humanize.IBytes(uint64(size)))
	}
	return buf, nil
}

// upload copies data into dst at off through a mapped staging buffer.
// off and len(data) must be multiples of 4.
func (r *Runtime) upload(dst *wgpu.Buffer, off int, data []byte) {
	size := uint64(len(data))
	staging := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	defer staging.Release()
	mapped := staging.GetMappedRange(0, size)
	//nolint:gosec // mapped range is valid for size bytes until Unmap.
	copy(unsafe.Slice((*byte)(mapped), size), data)
	staging.Unmap()

	encoder := r.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, dst, uint64(off), size)
	r.queue.Submit(encoder.Finish(nil))
}

// download reads len(out) bytes at off from src. off and len(out) must be
// multiples of 4.
func (r *Runtime) download(src *wgpu.Buffer, off int, out []byte) error {
	size := uint64(len(out))
	staging := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := r.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, uint64(off), staging, 0, size)
	r.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(r.device, wgpu.MapModeRead, 0, size); err != nil {
		return errors.Wrap(err, "webgpu: map staging buffer")
	}
	mapped := staging.GetMappedRange(0, size)
	//nolint:gosec // mapped range is valid for size bytes until Unmap.
	copy(out, unsafe.Slice((*byte)(mapped), size))
	staging.Unmap()
	return nil
}

type deviceBuffer struct {
	rt     *Runtime
	buf    *wgpu.Buffer
	size   int
	padded int
	freed  atomic.Bool
}

func (b *deviceBuffer) Len() int { return b.size }

// Bytes returns nil: storage buffers are not host-visible.
func (b *deviceBuffer) Bytes() []byte { return nil }

func (b *deviceBuffer) check(off, n int) error {
	if b.freed.Load() {
		return errors.Wrap(backend.ErrDisposedHandle, "webgpu: buffer already freed")
	}
	if off < 0 || off+n > b.size {
		return errors.Wrapf(backend.ErrIndexOutOfRange, "webgpu: range [%d, %d) of %d bytes", off, off+n, b.size)
	}
	return nil
}

func (b *deviceBuffer) ReadAt(dst []byte, off int) error {
	if err := b.check(off, len(dst)); err != nil {
		return err
	}
	lo, hi := off&^3, align4(off+len(dst))
	window := make([]byte, hi-lo)
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	if err := b.rt.download(b.buf, lo, window); err != nil {
		return err
	}
	copy(dst, window[off-lo:])
	return nil
}

func (b *deviceBuffer) WriteAt(src []byte, off int) error {
	if err := b.check(off, len(src)); err != nil {
		return err
	}
	lo, hi := off&^3, align4(off+len(src))
	window := make([]byte, hi-lo)
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	if lo != off || hi != off+len(src) {
		// Partial words: keep the bytes around src.
		if err := b.rt.download(b.buf, lo, window); err != nil {
			return err
		}
	}
	copy(window[off-lo:], src)
	b.rt.upload(b.buf, lo, window)
	return nil
}

// CopyFrom copies another buffer of this runtime on the device.
func (b *deviceBuffer) CopyFrom(src backend.Buffer) error {
	other, ok := src.(*deviceBuffer)
	if !ok || other.rt != b.rt {
		return fmt.Errorf("webgpu: CopyFrom needs a buffer of the same runtime, got %T", src)
	}
	if other.size != b.size {
		return errors.Errorf("webgpu: copy of %d bytes into %d byte buffer", other.size, b.size)
	}
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	encoder := b.rt.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(other.buf, 0, b.buf, 0, uint64(b.padded))
	b.rt.queue.Submit(encoder.Finish(nil))
	return nil
}

func (b *deviceBuffer) Free() error {
	if !b.freed.CompareAndSwap(false, true) {
		return errors.New("webgpu: buffer freed twice")
	}
	b.buf.Release()
	b.rt.live.Add(-int64(b.padded))
	klog.V(3).Infof("webgpu: freed %s", humanize.IBytes(uint64(b.padded)))
	return nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}
