// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Tensor is a handle to a typed n-dimensional view over shared storage.
type Tensor = tensor.Tensor

// DataType is the element kind of a tensor.
type DataType = tensor.DataType

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Layout maps logical indices onto storage offsets.
type Layout = tensor.Layout

// Storage is the reference-counted memory behind one or more tensors.
type Storage = tensor.Storage

// Device identifies where a tensor's storage lives.
type Device = tensor.Device

// Option configures a tensor factory.
type Option = tensor.Option

// Scope disposes a group of tensors together.
type Scope = tensor.Scope

// Data type constants. The values are the kind byte of saved tensors.
const (
	Uint8    DataType = tensor.Uint8
	Int8     DataType = tensor.Int8
	Int16    DataType = tensor.Int16
	Int32    DataType = tensor.Int32
	Int64    DataType = tensor.Int64
	Float16  DataType = tensor.Float16
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	Bool     DataType = tensor.Bool
	BFloat16 DataType = tensor.BFloat16
)

// CPU is the host device.
var CPU = tensor.CPU

// DataTypes lists every supported kind in promotion order.
var DataTypes = tensor.DataTypes

// Errors returned by tensor operations; test for them with errors.Is.
var (
	ErrShapeMismatch       = tensor.ErrShapeMismatch
	ErrDeviceMismatch      = tensor.ErrDeviceMismatch
	ErrDeviceUnavailable   = tensor.ErrDeviceUnavailable
	ErrTypeMismatch        = tensor.ErrTypeMismatch
	ErrIndexOutOfRange     = tensor.ErrIndexOutOfRange
	ErrDisposedHandle      = tensor.ErrDisposedHandle
	ErrOutOfMemory         = tensor.ErrOutOfMemory
	ErrSerializationFormat = tensor.ErrSerializationFormat
	ErrZeroDivision        = tensor.ErrZeroDivision
)

// AcceleratorDevice returns the accelerator with the given ordinal.
func AcceleratorDevice(index int) Device {
	return tensor.AcceleratorDevice(index)
}

// AcceleratorAvailable reports whether accelerator 0 can be used.
func AcceleratorAvailable() bool {
	return tensor.AcceleratorAvailable()
}

// Devices lists every usable device, host first.
func Devices() []Device {
	return tensor.Devices()
}

// OnDevice places a new tensor on dev.
func OnDevice(dev Device) Option {
	return tensor.OnDevice(dev)
}

// WithRequiresGrad marks a new floating point tensor as requiring gradients.
func WithRequiresGrad() Option {
	return tensor.WithRequiresGrad()
}

// ParseDataType returns the kind named by s, e.g. "float32" or "bf16".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// PromoteTypes returns the kind two tensor operands are computed in.
func PromoteTypes(a, b DataType) DataType {
	return tensor.PromoteTypes(a, b)
}

// ContiguousStrides returns the row-major strides of shape.
func ContiguousStrides(shape Shape) []int {
	return tensor.ContiguousStrides(shape)
}

// BroadcastShapes returns the NumPy broadcast of a and b.
func BroadcastShapes(a, b Shape) (Shape, error) {
	shape, _, err := tensor.BroadcastShapes(a, b)
	return shape, err
}

// Creation functions

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	x, err := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32)
func Zeros(shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	return tensor.Zeros(shape, dt, opts...)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	return tensor.Ones(shape, dt, opts...)
}

// Full creates a tensor with every element set to value.
//
// Example:
//
//	x, err := tensor.Full(tensor.Shape{2, 3}, 3.14, tensor.Float64)
func Full(shape Shape, value any, dt DataType, opts ...Option) (*Tensor, error) {
	return tensor.Full(shape, value, dt, opts...)
}

// FromBuffer copies a typed Go slice, such as []float32 or []bool, into a
// tensor of shape.
func FromBuffer(data any, shape Shape, opts ...Option) (*Tensor, error) {
	return tensor.FromBuffer(data, shape, opts...)
}

// FromBytes copies row-major little-endian element bytes into a tensor.
func FromBytes(dt DataType, raw []byte, shape Shape, opts ...Option) (*Tensor, error) {
	return tensor.FromBytes(dt, raw, shape, opts...)
}

// FromScalar creates a 0-d tensor holding v.
func FromScalar(v any, opts ...Option) (*Tensor, error) {
	return tensor.FromScalar(v, opts...)
}

// Arange creates the 1-d sequence start, start+step, ... up to end.
func Arange(start, end, step float64, dt DataType, opts ...Option) (*Tensor, error) {
	return tensor.Arange(start, end, step, dt, opts...)
}

// Eye creates the n×n identity matrix.
func Eye(n int, dt DataType, opts ...Option) (*Tensor, error) {
	return tensor.Eye(n, dt, opts...)
}

// Rand creates a tensor of values drawn uniformly from [0, 1).
func Rand(shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	return tensor.Rand(shape, dt, opts...)
}

// Randn creates a tensor of values drawn from N(0, 1).
func Randn(shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	return tensor.Randn(shape, dt, opts...)
}

// RandInt creates a tensor of integers drawn uniformly from [0, high).
func RandInt(high int64, shape Shape, dt DataType, opts ...Option) (*Tensor, error) {
	return tensor.RandInt(high, shape, dt, opts...)
}

// ManualSeed makes the random factories deterministic.
func ManualSeed(seed uint64) {
	tensor.ManualSeed(seed)
}

// Combination functions

// Cat concatenates tensors along dim.
func Cat(tensors []*Tensor, dim int) (*Tensor, error) {
	return tensor.Cat(tensors, dim)
}

// Stack joins tensors of one shape along a new dimension dim.
func Stack(tensors []*Tensor, dim int) (*Tensor, error) {
	return tensor.Stack(tensors, dim)
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return tensor.NewScope()
}

// WithScope runs fn with a fresh scope and closes it afterwards.
func WithScope(fn func(s *Scope) error) error {
	return tensor.WithScope(fn)
}
