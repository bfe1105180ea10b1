// Package serialization reads and writes single tensors in a raw binary
// format:
//
//	[1 byte:  kind tag, the numeric DataType]
//	[4 bytes: rank (uint32 LE)]
//	[rank × 8 bytes: dimensions (int64 LE)]
//	[payload: elements in row-major order, little-endian]
//
// There is no magic number, version or checksum. Non-contiguous and
// accelerator tensors are materialized contiguously on the host before
// writing; loaded tensors always live on the host.
//
// Example usage:
//
//	if err := serialization.SaveFile("weights.bin", t); err != nil {
//	    log.Fatal(err)
//	}
//	loaded, err := serialization.LoadFile("weights.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loaded.Dispose()
package serialization
