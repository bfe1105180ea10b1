// Package tensor implements typed multi-dimensional arrays over
// reference-counted device memory.
package tensor

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// DataType is the element kind of a tensor. The numeric values are stable:
// they are written as the kind byte of persisted tensors.
type DataType uint8

// Supported data types.
const (
	Uint8    DataType = 0
	Int8     DataType = 1
	Int16    DataType = 2
	Int32    DataType = 3
	Int64    DataType = 4
	Float16  DataType = 5
	Float32  DataType = 6
	Float64  DataType = 7
	Bool     DataType = 11
	BFloat16 DataType = 15
)

type typeInfo struct {
	name string
	size int
	rank int
}

var typeInfos = map[DataType]typeInfo{
	Bool:     {"bool", 1, 0},
	Uint8:    {"uint8", 1, 1},
	Int8:     {"int8", 1, 2},
	Int16:    {"int16", 2, 3},
	Int32:    {"int32", 4, 4},
	Int64:    {"int64", 8, 5},
	Float16:  {"float16", 2, 6},
	BFloat16: {"bfloat16", 2, 7},
	Float32:  {"float32", 4, 8},
	Float64:  {"float64", 8, 9},
}

// DataTypes lists every supported kind in promotion order.
var DataTypes = []DataType{Bool, Uint8, Int8, Int16, Int32, Int64, Float16, BFloat16, Float32, Float64}

func (dt DataType) info() typeInfo {
	info, ok := typeInfos[dt]
	if !ok {
		exceptions.Panicf("tensor: invalid data type %d", uint8(dt))
	}
	return info
}

// Valid reports whether dt is a supported kind.
func (dt DataType) Valid() bool {
	_, ok := typeInfos[dt]
	return ok
}

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	return dt.info().size
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	if info, ok := typeInfos[dt]; ok {
		return info.name
	}
	return fmt.Sprintf("DataType(%d)", uint8(dt))
}

// IsFloat reports whether dt is a floating point kind.
func (dt DataType) IsFloat() bool {
	switch dt {
	case Float16, BFloat16, Float32, Float64:
		return true
	}
	return false
}

// IsIntegral reports whether dt is an integer kind. Bool is not integral.
func (dt DataType) IsIntegral() bool {
	switch dt {
	case Uint8, Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// IsSigned reports whether dt represents negative values.
func (dt DataType) IsSigned() bool {
	return dt.IsFloat() || (dt.IsIntegral() && dt != Uint8)
}

// category orders kinds coarsely: bool < integral < floating.
func (dt DataType) category() int {
	switch {
	case dt.IsFloat():
		return 2
	case dt.IsIntegral():
		return 1
	default:
		return 0
	}
}

// ParseDataType returns the kind named by s, e.g. "float32", "f16" or "bf16".
func ParseDataType(s string) (DataType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "u8", "byte":
		return Uint8, nil
	case "i8":
		return Int8, nil
	case "i16", "short":
		return Int16, nil
	case "i32", "int":
		return Int32, nil
	case "i64", "long":
		return Int64, nil
	case "f16", "half":
		return Float16, nil
	case "bf16":
		return BFloat16, nil
	case "f32", "float":
		return Float32, nil
	case "f64", "double":
		return Float64, nil
	}
	for dt, info := range typeInfos {
		if info.name == name {
			return dt, nil
		}
	}
	return 0, errors.Wrapf(ErrTypeMismatch, "unknown data type %q", s)
}

// PromoteTypes returns the kind two tensor operands are computed in.
// The higher ranked kind wins and bool defers to the other operand. Mixed
// uint8/int8 promotes to int16 and mixed float16/bfloat16 to float32 so the
// result never narrows either input.
func PromoteTypes(a, b DataType) DataType {
	switch {
	case a == b:
		return a
	case a == Bool:
		return b
	case b == Bool:
		return a
	case (a == Uint8 && b == Int8) || (a == Int8 && b == Uint8):
		return Int16
	case (a == Float16 && b == BFloat16) || (a == BFloat16 && b == Float16):
		return Float32
	case a.info().rank > b.info().rank:
		return a
	default:
		return b
	}
}

// promoteScalar returns the result kind of a tensor of kind t combined with
// a Go scalar of kind s. The scalar only counts by category.
func promoteScalar(t, s DataType) DataType {
	if s.category() <= t.category() {
		return t
	}
	if s.IsFloat() {
		return Float32
	}
	return Int64
}

// SumType returns the default kind of a summation over dt: integral and
// bool sums accumulate in int64, floating kinds keep their kind.
func SumType(dt DataType) DataType {
	if dt.IsFloat() {
		return dt
	}
	return Int64
}
