// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides typed multi-dimensional arrays.
//
// # Overview
//
// A Tensor is a handle to a view over reference-counted device memory. The
// element kind is chosen at run time from ten supported data types:
//   - bool
//   - uint8, int8, int16, int32, int64
//   - float16, bfloat16, float32, float64
//
// # Basic Usage
//
//	x, err := tensor.Ones(tensor.Shape{2, 3}, tensor.Float32)
//	if err != nil {
//	    return err
//	}
//	defer x.Dispose()
//
//	y, err := x.AddScalar(1)   // float32, every element 2
//	row, err := y.Get(1)       // view of the second row
//
// # Views and Disposal
//
// Get, Reshape, Expand, Narrow, Slice, Squeeze, Split and Unbind return
// views that share memory with their source. Every handle, view or not,
// must be disposed; the memory is freed with the last handle. A Scope
// disposes many handles at once:
//
//	s := tensor.NewScope()
//	defer s.Close()
//	a, _ := s.Track(tensor.Zeros(tensor.Shape{1, 9}, tensor.Float32))
//	b, _ := s.Track(tensor.Ones(tensor.Shape{1, 9}, tensor.Float32))
//	c, _ := s.Track(tensor.Cat([]*tensor.Tensor{a, b}, 0)) // [2 9]
//
// # Operators
//
// Arithmetic and comparison operators broadcast with NumPy rules and
// promote mixed kinds to a common one. Division of integers is floating
// point, and Remainder takes the sign of the divisor. The InPlace variants
// write into and return the receiver.
//
// # Devices
//
// Tensors live on the host unless created with OnDevice or moved with
// ToDevice. The accelerator runtime is selected by TENSORCORE_ACCELERATOR.
//
// # Persistence
//
// Save and Load use a compact little-endian format:
//
//	[kind:1][rank:4][dims:rank*8][row-major payload]
package tensor
