package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"math/bits"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Header is the decoded prefix of a serialized tensor.
type Header struct {
	DType tensor.DataType
	Shape tensor.Shape
}

// Size returns the number of header bytes.
func (h Header) Size() int64 {
	return 1 + 4 + 8*int64(len(h.Shape))
}

// PayloadSize returns the number of payload bytes.
func (h Header) PayloadSize() int64 {
	return int64(h.Shape.NumElements() * h.DType.Size())
}

// Save writes t to w.
func Save(w io.Writer, t *tensor.Tensor) error {
	payload, err := t.Bytes()
	if err != nil {
		return errors.WithMessage(err, "save")
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, Header{DType: t.DType(), Shape: t.Shape()}); err != nil {
		return err
	}
	if _, err := bw.Write(payload); err != nil {
		return errors.Wrap(err, "save: write payload")
	}
	return errors.Wrap(bw.Flush(), "save: flush")
}

func writeHeader(w io.Writer, h Header) error {
	buf := make([]byte, h.Size())
	buf[0] = byte(h.DType)
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(h.Shape)))
	for i, d := range h.Shape {
		binary.LittleEndian.PutUint64(buf[5+8*i:], uint64(int64(d)))
	}
	_, err := w.Write(buf)
	return errors.Wrap(err, "save: write header")
}

// SaveFile writes t to the file at path, replacing it.
func SaveFile(path string, t *tensor.Tensor) (err error) {
	//nolint:gosec // G304: path is chosen by the caller.
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "save")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "save")
		}
	}()
	if err := Save(f, t); err != nil {
		return errors.WithMessagef(err, "save %s", path)
	}
	klog.V(2).Infof("serialization: saved %s to %s", t, path)
	return nil
}

// ReadHeader decodes and validates a header.
func ReadHeader(r io.Reader) (Header, error) {
	var prefix [5]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Header{}, formatErrorf("header", 0, "truncated: %v", err)
	}
	dt := tensor.DataType(prefix[0])
	if !dt.Valid() {
		return Header{}, formatErrorf("kind", 0, "unknown kind tag %d", prefix[0])
	}
	rank := binary.LittleEndian.Uint32(prefix[1:])
	if rank > MaxRank {
		return Header{}, formatErrorf("rank", 1, "rank %d exceeds %d", rank, MaxRank)
	}

	dims := make([]byte, 8*int(rank))
	if _, err := io.ReadFull(r, dims); err != nil {
		return Header{}, formatErrorf("dims", 5, "truncated: %v", err)
	}
	shape := make(tensor.Shape, rank)
	total := uint64(dt.Size())
	for i := range shape {
		d := int64(binary.LittleEndian.Uint64(dims[8*i:]))
		if d < 0 {
			return Header{}, formatErrorf("dims", 5+8*int64(i), "negative dimension %d", d)
		}
		hi, lo := bits.Mul64(total, uint64(d))
		if hi != 0 || lo > math.MaxInt64/2 {
			return Header{}, formatErrorf("dims", 5+8*int64(i), "payload size overflows")
		}
		total = lo
		shape[i] = int(d)
	}
	return Header{DType: dt, Shape: shape}, nil
}

// Load reads one tensor from r onto the host. Bytes after the payload are
// left unread, so tensors can be read back to back from one stream.
func Load(r io.Reader) (*tensor.Tensor, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	size := h.PayloadSize()
	var payload bytes.Buffer
	// CopyN grows the buffer as data arrives, so a corrupt size cannot
	// allocate more than the input holds.
	if n, err := io.CopyN(&payload, r, size); err != nil {
		return nil, formatErrorf("payload", h.Size()+n, "truncated: %d of %d bytes: %v", n, size, err)
	}
	t, err := tensor.FromBytes(h.DType, payload.Bytes(), h.Shape)
	if err != nil {
		return nil, errors.WithMessage(err, "load")
	}
	return t, nil
}

// LoadFile reads the tensor stored at path. The file must hold exactly one
// tensor.
func LoadFile(path string) (*tensor.Tensor, error) {
	//nolint:gosec // G304: path is chosen by the caller.
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}
	if info.Size() == 0 {
		return nil, errors.WithMessagef(formatErrorf("header", 0, "empty file"), "load %s", path)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s: mmap", path)
	}
	defer func() {
		if err := m.Unmap(); err != nil {
			klog.Warningf("serialization: unmap %s: %v", path, err)
		}
	}()

	r := bytes.NewReader(m)
	t, err := Load(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s", path)
	}
	if rest := r.Len(); rest > 0 {
		t.Dispose()
		return nil, errors.WithMessagef(formatErrorf("payload", info.Size()-int64(rest), "%d trailing bytes", rest), "load %s", path)
	}
	klog.V(2).Infof("serialization: loaded %s from %s", t, path)
	return t, nil
}
