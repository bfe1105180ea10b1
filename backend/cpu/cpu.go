// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu exposes the host memory runtime.
//
// Host tensors at or above TENSORCORE_MMAP_THRESHOLD bytes live in
// anonymous memory maps; smaller ones on the Go heap. The total is capped
// by TENSORCORE_HOST_MEMORY_LIMIT.
//
// Example:
//
//	fmt.Println(humanize.IBytes(uint64(cpu.LiveBytes())))
package cpu

import (
	internalcpu "github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/tensor"
)

// Runtime is the host memory runtime.
type Runtime = internalcpu.Runtime

// Default returns the runtime backing every host tensor.
func Default() *Runtime {
	return internalcpu.Default
}

// LiveBytes returns the bytes held by host tensors that are not yet freed.
func LiveBytes() int64 {
	return internalcpu.Default.LiveBytes()
}

// MappedBuffers returns the number of live memory-mapped host buffers.
func MappedBuffers() int64 {
	return internalcpu.Default.MappedBuffers()
}

// Device returns the host device.
func Device() tensor.Device {
	return tensor.CPU
}
