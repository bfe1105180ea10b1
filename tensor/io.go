// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"io"

	"github.com/born-ml/tensorcore/internal/serialization"
)

// Save writes t to w. Tensors on an accelerator are copied to the host
// first.
func Save(w io.Writer, t *Tensor) error {
	return serialization.Save(w, t)
}

// Load reads one tensor from r onto the host. Several tensors saved to one
// stream can be loaded back in order.
func Load(r io.Reader) (*Tensor, error) {
	return serialization.Load(r)
}

// SaveFile writes t to the file at path.
func SaveFile(path string, t *Tensor) error {
	return serialization.SaveFile(path, t)
}

// LoadFile reads the single tensor stored at path.
func LoadFile(path string) (*Tensor, error) {
	return serialization.LoadFile(path)
}
