package tensor

import (
	"encoding/binary"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/born-ml/tensorcore/internal/backend/cpu"
)

// Elements are stored little-endian. load and store convert between the
// stored kind and a compute type T with Go's native conversion rules;
// float16 and bfloat16 go through float32.

func load[T cpu.Number](dt DataType, data []byte, i int) T {
	le := binary.LittleEndian
	switch dt {
	case Bool, Uint8:
		return T(data[i])
	case Int8:
		return T(int8(data[i]))
	case Int16:
		return T(int16(le.Uint16(data[2*i:])))
	case Int32:
		return T(int32(le.Uint32(data[4*i:])))
	case Int64:
		return T(int64(le.Uint64(data[8*i:])))
	case Float16:
		return T(float16.Frombits(le.Uint16(data[2*i:])).Float32())
	case BFloat16:
		return T(bfloat16.FromBits(le.Uint16(data[2*i:])).Float32())
	case Float32:
		return T(math.Float32frombits(le.Uint32(data[4*i:])))
	case Float64:
		return T(math.Float64frombits(le.Uint64(data[8*i:])))
	}
	exceptions.Panicf("tensor: load of invalid data type %d", uint8(dt))
	return 0
}

func store[T cpu.Number](dt DataType, data []byte, i int, v T) {
	le := binary.LittleEndian
	switch dt {
	case Bool:
		if v != 0 {
			data[i] = 1
		} else {
			data[i] = 0
		}
	case Uint8:
		data[i] = uint8(v)
	case Int8:
		data[i] = byte(int8(v))
	case Int16:
		le.PutUint16(data[2*i:], uint16(int16(v)))
	case Int32:
		le.PutUint32(data[4*i:], uint32(int32(v)))
	case Int64:
		le.PutUint64(data[8*i:], uint64(int64(v)))
	case Float16:
		le.PutUint16(data[2*i:], float16.Fromfloat32(float32(v)).Bits())
	case BFloat16:
		le.PutUint16(data[2*i:], toBFloat16(float32(v)).Bits())
	case Float32:
		le.PutUint32(data[4*i:], math.Float32bits(float32(v)))
	case Float64:
		le.PutUint64(data[8*i:], math.Float64bits(float64(v)))
	default:
		exceptions.Panicf("tensor: store of invalid data type %d", uint8(dt))
	}
}

// toBFloat16 rounds f to the nearest bfloat16, ties to even. NaN maps to the
// quiet NaN 0x7FC0 so payloads in the dropped bits cannot turn into Inf.
func toBFloat16(f float32) bfloat16.BFloat16 {
	if f != f {
		return bfloat16.FromBits(0x7FC0)
	}
	b := math.Float32bits(f)
	return bfloat16.FromBits(uint16((b + 0x7FFF + ((b >> 16) & 1)) >> 16))
}

// loadValue returns element i as the Go type native to dt.
func loadValue(dt DataType, data []byte, i int) any {
	le := binary.LittleEndian
	switch dt {
	case Bool:
		return data[i] != 0
	case Uint8:
		return data[i]
	case Int8:
		return int8(data[i])
	case Int16:
		return int16(le.Uint16(data[2*i:]))
	case Int32:
		return int32(le.Uint32(data[4*i:]))
	case Int64:
		return int64(le.Uint64(data[8*i:]))
	case Float16:
		return float16.Frombits(le.Uint16(data[2*i:]))
	case BFloat16:
		return bfloat16.FromBits(le.Uint16(data[2*i:]))
	case Float32:
		return math.Float32frombits(le.Uint32(data[4*i:]))
	case Float64:
		return math.Float64frombits(le.Uint64(data[8*i:]))
	}
	exceptions.Panicf("tensor: load of invalid data type %d", uint8(dt))
	return nil
}

// encodeScalar returns the kind and little-endian bytes of a Go scalar.
// Untyped Go ints are int64.
func encodeScalar(v any) (DataType, []byte, error) {
	var (
		dt  DataType
		buf [8]byte
		le  = binary.LittleEndian
	)
	switch x := v.(type) {
	case bool:
		dt = Bool
		if x {
			buf[0] = 1
		}
	case uint8:
		dt, buf[0] = Uint8, x
	case int8:
		dt, buf[0] = Int8, byte(x)
	case int16:
		dt = Int16
		le.PutUint16(buf[:], uint16(x))
	case int32:
		dt = Int32
		le.PutUint32(buf[:], uint32(x))
	case int64:
		dt = Int64
		le.PutUint64(buf[:], uint64(x))
	case int:
		dt = Int64
		le.PutUint64(buf[:], uint64(int64(x)))
	case float16.Float16:
		dt = Float16
		le.PutUint16(buf[:], x.Bits())
	case bfloat16.BFloat16:
		dt = BFloat16
		le.PutUint16(buf[:], x.Bits())
	case float32:
		dt = Float32
		le.PutUint32(buf[:], math.Float32bits(x))
	case float64:
		dt = Float64
		le.PutUint64(buf[:], math.Float64bits(x))
	default:
		return 0, nil, errors.Wrapf(ErrTypeMismatch, "unsupported scalar type %T", v)
	}
	return dt, buf[:dt.Size()], nil
}

// encodeSlice returns the kind and little-endian bytes of a typed Go slice.
func encodeSlice(data any) (DataType, []byte, error) {
	switch x := data.(type) {
	case []bool:
		raw := make([]byte, len(x))
		for i, v := range x {
			if v {
				raw[i] = 1
			}
		}
		return Bool, raw, nil
	case []uint8:
		return Uint8, append([]byte(nil), x...), nil
	case []int8:
		return Int8, encodeNumbers(Int8, x), nil
	case []int16:
		return Int16, encodeNumbers(Int16, x), nil
	case []int32:
		return Int32, encodeNumbers(Int32, x), nil
	case []int64:
		return Int64, encodeNumbers(Int64, x), nil
	case []int:
		return Int64, encodeNumbers(Int64, x), nil
	case []float32:
		return Float32, encodeNumbers(Float32, x), nil
	case []float64:
		return Float64, encodeNumbers(Float64, x), nil
	case []float16.Float16:
		raw := make([]byte, 2*len(x))
		for i, v := range x {
			binary.LittleEndian.PutUint16(raw[2*i:], v.Bits())
		}
		return Float16, raw, nil
	case []bfloat16.BFloat16:
		raw := make([]byte, 2*len(x))
		for i, v := range x {
			binary.LittleEndian.PutUint16(raw[2*i:], v.Bits())
		}
		return BFloat16, raw, nil
	}
	return 0, nil, errors.Wrapf(ErrTypeMismatch, "unsupported buffer type %T", data)
}

func encodeNumbers[T ~int | cpu.Number](dt DataType, values []T) []byte {
	raw := make([]byte, len(values)*dt.Size())
	for i, v := range values {
		switch dt {
		case Float32:
			store(dt, raw, i, float32(v))
		case Float64:
			store(dt, raw, i, float64(v))
		default:
			store(dt, raw, i, int64(v))
		}
	}
	return raw
}
