// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu selects the WebGPU runtime as the tensor accelerator.
//
// By default the accelerator is chosen from TENSORCORE_ACCELERATOR the
// first time one is requested. Enable registers WebGPU explicitly instead:
//
//	if err := webgpu.Enable(); err != nil {
//	    log.Printf("no GPU, staying on the host: %v", err)
//	}
//	x, err := tensor.Ones(tensor.Shape{1024}, tensor.Float32,
//	    tensor.OnDevice(tensor.AcceleratorDevice(0)))
//
// The bindings are only wired on windows; elsewhere Enable fails with
// tensor.ErrDeviceUnavailable.
package webgpu

import (
	"github.com/born-ml/tensorcore/internal/backend"
	internalwebgpu "github.com/born-ml/tensorcore/internal/backend/webgpu"
)

// Enable registers a WebGPU runtime as the accelerator, replacing any
// runtime registered before.
func Enable() error {
	rt, err := internalwebgpu.New()
	if err != nil {
		return err
	}
	backend.Register(rt)
	return nil
}
