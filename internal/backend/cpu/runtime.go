// Package cpu implements the host runtime: host memory allocation and the
// elementwise kernels every device falls back to.
package cpu

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/backend"
	"github.com/born-ml/tensorcore/internal/envconfig"
)

// Runtime allocates host memory. Small buffers live on the Go heap, larger
// ones in anonymous memory mappings outside of it.
type Runtime struct {
	live      atomic.Int64
	mapped    atomic.Int64
	limit     func() uint64
	threshold func() uint64
}

// Default is the runtime registered for the host device.
var Default = New()

func init() {
	backend.Register(Default)
}

// New creates a host runtime configured from the environment.
func New() *Runtime {
	return &Runtime{
		limit:     envconfig.HostMemoryLimit,
		threshold: envconfig.MmapThreshold,
	}
}

// Name returns "host".
func (r *Runtime) Name() string { return "host" }

// DeviceType returns backend.CPU.
func (r *Runtime) DeviceType() backend.DeviceType { return backend.CPU }

// NumDevices returns 1.
func (r *Runtime) NumDevices() int { return 1 }

// Synchronize is a no-op: host copies complete before returning.
func (r *Runtime) Synchronize(int) error { return nil }

// LiveBytes returns the number of bytes currently allocated.
func (r *Runtime) LiveBytes() int64 { return r.live.Load() }

// MappedBuffers returns how many live buffers are memory mapped.
func (r *Runtime) MappedBuffers() int64 { return r.mapped.Load() }

// Allocate returns a zeroed buffer of size bytes.
func (r *Runtime) Allocate(ordinal, size int) (backend.Buffer, error) {
	if ordinal != 0 {
		return nil, errors.Wrapf(backend.ErrDeviceUnavailable, "host has no device %d", ordinal)
	}
	if size < 0 {
		return nil, errors.Errorf("cpu: negative allocation size %d", size)
	}
	n := r.live.Add(int64(size))
	if limit := r.limit(); limit > 0 && uint64(n) > limit {
		r.live.Add(-int64(size))
		return nil, errors.Wrapf(backend.ErrOutOfMemory, "cpu: allocating %s exceeds host limit of %s",
			humanize.IBytes(uint64(size)), humanize.IBytes(limit))
	}

	buf := &hostBuffer{rt: r}
	if size > 0 && uint64(size) >= r.threshold() {
		m, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
		if err != nil {
			r.live.Add(-int64(size))
			return nil, errors.Wrapf(backend.ErrOutOfMemory, "cpu: mapping %s: %v", humanize.IBytes(uint64(size)), err)
		}
		buf.mapping = m
		buf.data = m
		r.mapped.Add(1)
	} else {
		buf.data = make([]byte, size)
	}
	klog.V(3).Infof("cpu: allocated %s (mapped=%t)", humanize.IBytes(uint64(size)), buf.mapping != nil)
	return buf, nil
}

type hostBuffer struct {
	rt      *Runtime
	data    []byte
	mapping mmap.MMap
	freed   atomic.Bool
}

func (b *hostBuffer) Len() int { return len(b.data) }

func (b *hostBuffer) Bytes() []byte { return b.data }

func (b *hostBuffer) ReadAt(dst []byte, off int) error {
	if off < 0 || off+len(dst) > len(b.data) {
		return errors.Wrapf(backend.ErrIndexOutOfRange, "cpu: read [%d, %d) of %d bytes", off, off+len(dst), len(b.data))
	}
	copy(dst, b.data[off:])
	return nil
}

func (b *hostBuffer) WriteAt(src []byte, off int) error {
	if off < 0 || off+len(src) > len(b.data) {
		return errors.Wrapf(backend.ErrIndexOutOfRange, "cpu: write [%d, %d) of %d bytes", off, off+len(src), len(b.data))
	}
	copy(b.data[off:], src)
	return nil
}

// CopyFrom copies a host-visible buffer of the same size.
func (b *hostBuffer) CopyFrom(src backend.Buffer) error {
	if src.Len() != len(b.data) {
		return errors.Errorf("cpu: copy of %d bytes into %d byte buffer", src.Len(), len(b.data))
	}
	if raw := src.Bytes(); raw != nil {
		copy(b.data, raw)
		return nil
	}
	return src.ReadAt(b.data, 0)
}

func (b *hostBuffer) Free() error {
	if !b.freed.CompareAndSwap(false, true) {
		return errors.New("cpu: buffer freed twice")
	}
	size := len(b.data)
	b.data = nil
	b.rt.live.Add(-int64(size))
	klog.V(3).Infof("cpu: freed %s", humanize.IBytes(uint64(size)))
	if b.mapping != nil {
		b.rt.mapped.Add(-1)
		m := b.mapping
		b.mapping = nil
		return m.Unmap()
	}
	return nil
}
