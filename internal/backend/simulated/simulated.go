// Package simulated provides an accelerator runtime backed by host memory.
//
// Buffers are not host-visible and uploads complete asynchronously on a
// per-device queue, so code running against it goes through the same
// staging and synchronization steps a real accelerator needs.
package simulated

import (
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/backend"
)

const queueDepth = 64

// Runtime simulates one or more accelerator devices.
type Runtime struct {
	devices []*device
	limit   int64
	live    atomic.Int64
	closed  atomic.Bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMemoryLimit makes allocations fail with ErrOutOfMemory once live
// memory would exceed limit bytes per runtime.
func WithMemoryLimit(limit int64) Option {
	return func(r *Runtime) { r.limit = limit }
}

type device struct {
	jobs    chan func()
	pending sync.WaitGroup
}

// New starts a runtime with n devices.
func New(n int, opts ...Option) *Runtime {
	r := &Runtime{devices: make([]*device, n)}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.devices {
		d := &device{jobs: make(chan func(), queueDepth)}
		go func() {
			for job := range d.jobs {
				job()
				d.pending.Done()
			}
		}()
		r.devices[i] = d
	}
	return r
}

// Install registers a new runtime with n devices as the accelerator and
// returns a function restoring the previous registration.
func Install(n int, opts ...Option) (*Runtime, func()) {
	r := New(n, opts...)
	prev := backend.Register(r)
	return r, func() {
		if prev != nil {
			backend.Register(prev)
		} else {
			backend.Unregister(backend.Accelerator)
		}
		r.Close()
	}
}

// Close stops the device queues after draining them.
func (r *Runtime) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	for _, d := range r.devices {
		d.pending.Wait()
		close(d.jobs)
	}
}

// Name returns "simulated".
func (r *Runtime) Name() string { return "simulated" }

// DeviceType returns backend.Accelerator.
func (r *Runtime) DeviceType() backend.DeviceType { return backend.Accelerator }

// NumDevices returns the number of simulated devices.
func (r *Runtime) NumDevices() int { return len(r.devices) }

// LiveBytes returns the bytes held by live buffers.
func (r *Runtime) LiveBytes() int64 { return r.live.Load() }

// Synchronize waits until every queued transfer on ordinal has landed.
func (r *Runtime) Synchronize(ordinal int) error {
	if ordinal < 0 || ordinal >= len(r.devices) {
		return errors.Wrapf(backend.ErrDeviceUnavailable, "simulated: no device %d", ordinal)
	}
	r.devices[ordinal].pending.Wait()
	return nil
}

// Allocate returns a zeroed device buffer.
func (r *Runtime) Allocate(ordinal, size int) (backend.Buffer, error) {
	if r.closed.Load() {
		return nil, errors.Wrap(backend.ErrDeviceUnavailable, "simulated: runtime closed")
	}
	if ordinal < 0 || ordinal >= len(r.devices) {
		return nil, errors.Wrapf(backend.ErrDeviceUnavailable, "simulated: no device %d", ordinal)
	}
	n := r.live.Add(int64(size))
	if r.limit > 0 && n > r.limit {
		r.live.Add(-int64(size))
		return nil, errors.Wrapf(backend.ErrOutOfMemory, "simulated: allocating %s on device %d",
			humanize.IBytes(uint64(size)), ordinal)
	}
	klog.V(3).Infof("simulated: allocated %s on device %d", humanize.IBytes(uint64(size)), ordinal)
	return &buffer{rt: r, dev: r.devices[ordinal], ordinal: ordinal, mem: make([]byte, size)}, nil
}

type buffer struct {
	rt      *Runtime
	dev     *device
	ordinal int
	mem     []byte
	freed   atomic.Bool
}

func (b *buffer) Len() int { return len(b.mem) }

// Bytes returns nil: device memory is only reachable through copies.
func (b *buffer) Bytes() []byte { return nil }

func (b *buffer) check(off, n int) error {
	if b.freed.Load() {
		return errors.Wrap(backend.ErrDisposedHandle, "simulated: buffer already freed")
	}
	if off < 0 || off+n > len(b.mem) {
		return errors.Wrapf(backend.ErrIndexOutOfRange, "simulated: range [%d, %d) of %d bytes", off, off+n, len(b.mem))
	}
	return nil
}

// ReadAt waits for pending uploads and copies device memory into dst.
func (b *buffer) ReadAt(dst []byte, off int) error {
	if err := b.check(off, len(dst)); err != nil {
		return err
	}
	b.dev.pending.Wait()
	copy(dst, b.mem[off:])
	return nil
}

// WriteAt queues an upload of a private copy of src.
func (b *buffer) WriteAt(src []byte, off int) error {
	if err := b.check(off, len(src)); err != nil {
		return err
	}
	data := append([]byte(nil), src...)
	b.submit(func() { copy(b.mem[off:], data) })
	return nil
}

// CopyFrom queues a device-side copy from another buffer of this runtime.
func (b *buffer) CopyFrom(src backend.Buffer) error {
	other, ok := src.(*buffer)
	if !ok || other.rt != b.rt {
		return errors.Errorf("simulated: CopyFrom needs a buffer of the same runtime, got %T", src)
	}
	if len(other.mem) != len(b.mem) {
		return errors.Errorf("simulated: copy of %d bytes into %d byte buffer", len(other.mem), len(b.mem))
	}
	other.dev.pending.Wait()
	b.submit(func() { copy(b.mem, other.mem) })
	return nil
}

func (b *buffer) submit(job func()) {
	b.dev.pending.Add(1)
	b.dev.jobs <- job
}

func (b *buffer) Free() error {
	if !b.freed.CompareAndSwap(false, true) {
		return errors.New("simulated: buffer freed twice")
	}
	b.dev.pending.Wait()
	size := len(b.mem)
	b.mem = nil
	b.rt.live.Add(-int64(size))
	klog.V(3).Infof("simulated: freed %s on device %d", humanize.IBytes(uint64(size)), b.ordinal)
	return nil
}
