package tensor

import (
	"math"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/backend"
)

// Storage is a reference-counted block of device memory holding elements of
// one kind. Every tensor handle, view or not, holds one reference; the
// memory is freed when the last handle is disposed.
type Storage struct {
	buf    backend.Buffer
	rt     backend.Runtime
	dtype  DataType
	device Device
	numel  int
	refs   atomic.Int32
}

// newStorage allocates zeroed memory for numel elements of dt on dev. The
// caller owns the single initial reference.
func newStorage(numel int, dt DataType, dev Device) (*Storage, error) {
	rt, err := runtimeFor(dev)
	if err != nil {
		return nil, err
	}
	size, err := byteSize(numel, dt)
	if err != nil {
		return nil, errors.WithMessagef(err, "allocate on %s", dev)
	}
	buf, err := rt.Allocate(dev.Index, size)
	if err != nil {
		return nil, errors.WithMessagef(err, "allocate %d x %s on %s", numel, dt, dev)
	}
	s := &Storage{buf: buf, rt: rt, dtype: dt, device: dev, numel: numel}
	s.refs.Store(1)
	klog.V(3).Infof("tensor: storage of %d x %s (%s) on %s", numel, dt, humanize.IBytes(uint64(size)), dev)
	return s, nil
}

// byteSize returns the bytes needed by numel elements of dt.
func byteSize(numel int, dt DataType) (int, error) {
	if numel < 0 || numel > math.MaxInt/dt.Size() {
		return 0, errors.Wrapf(ErrOutOfMemory, "%d x %s overflows the addressable size", numel, dt)
	}
	return numel * dt.Size(), nil
}

// newStorageFrom allocates storage on dev holding a copy of raw.
func newStorageFrom(raw []byte, dt DataType, dev Device) (*Storage, error) {
	s, err := newStorage(len(raw)/dt.Size(), dt, dev)
	if err != nil {
		return nil, err
	}
	if host := s.buf.Bytes(); host != nil {
		copy(host, raw)
		return s, nil
	}
	err = s.buf.WriteAt(raw, 0)
	if err == nil {
		err = s.rt.Synchronize(dev.Index)
	}
	if err != nil {
		s.release()
		return nil, errors.WithMessagef(err, "upload to %s", dev)
	}
	return s, nil
}

// DType returns the element kind.
func (s *Storage) DType() DataType { return s.dtype }

// Device returns where the memory lives.
func (s *Storage) Device() Device { return s.device }

// NumElements returns the element capacity.
func (s *Storage) NumElements() int { return s.numel }

// ByteSize returns the size of the memory block.
func (s *Storage) ByteSize() int { return s.numel * s.dtype.Size() }

// RefCount returns the number of live handles sharing this storage.
func (s *Storage) RefCount() int { return int(s.refs.Load()) }

// retain adds a reference. It fails once the storage has been freed.
func (s *Storage) retain() error {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return errors.Wrap(ErrDisposedHandle, "storage already freed")
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// release drops a reference and frees the memory with the last one.
func (s *Storage) release() {
	n := s.refs.Add(-1)
	switch {
	case n == 0:
		if err := s.buf.Free(); err != nil {
			klog.Warningf("tensor: freeing storage on %s: %v", s.device, err)
		}
		klog.V(3).Infof("tensor: freed storage of %d x %s on %s", s.numel, s.dtype, s.device)
	case n < 0:
		exceptions.Panicf("tensor: storage released %d more times than retained", -n)
	}
}

// staging gives kernels host access to the storages of one operation.
// Host-visible memory is used in place; device memory is copied in once
// per storage and copied back on commit when marked dirty. Each staged
// storage holds a reference until done, so a handle collected mid-operation
// cannot free memory that is still being read.
type staging struct {
	data  map[*Storage][]byte
	dirty map[*Storage]bool
}

func newStaging() *staging {
	return &staging{data: map[*Storage][]byte{}, dirty: map[*Storage]bool{}}
}

func (st *staging) bytes(s *Storage) ([]byte, error) {
	if data, ok := st.data[s]; ok {
		return data, nil
	}
	if err := s.retain(); err != nil {
		return nil, err
	}
	data := s.buf.Bytes()
	if data == nil {
		if err := s.rt.Synchronize(s.device.Index); err != nil {
			s.release()
			return nil, err
		}
		data = make([]byte, s.buf.Len())
		if err := s.buf.ReadAt(data, 0); err != nil {
			s.release()
			return nil, errors.WithMessagef(err, "download from %s", s.device)
		}
		klog.V(2).Infof("tensor: staged %s from %s", humanize.IBytes(uint64(len(data))), s.device)
	}
	st.data[s] = data
	return data, nil
}

func (st *staging) markDirty(s *Storage) {
	st.dirty[s] = true
}

// commit uploads dirty device storages and waits for the uploads.
func (st *staging) commit() error {
	for s := range st.dirty {
		if s.buf.Bytes() != nil {
			continue
		}
		if err := s.buf.WriteAt(st.data[s], 0); err != nil {
			return errors.WithMessagef(err, "upload to %s", s.device)
		}
		if err := s.rt.Synchronize(s.device.Index); err != nil {
			return err
		}
		klog.V(2).Infof("tensor: uploaded %s to %s", humanize.IBytes(uint64(len(st.data[s]))), s.device)
	}
	return nil
}

// done drops the references taken by bytes. Staged host slices must not be
// used afterwards.
func (st *staging) done() {
	for s := range st.data {
		s.release()
	}
	clear(st.data)
	clear(st.dirty)
}
