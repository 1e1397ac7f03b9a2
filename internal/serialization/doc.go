// Package serialization reads and writes SafeTensors files.
//
//	Format:
//	  [8 bytes: header size (uint64 LE)]
//	  [header: JSON, tensor entries plus an optional "__metadata__" string map]
//	  [tensor data: raw little-endian bytes, tensors in name order]
//
// Writers record a SHA-256 of the data section in the metadata under
// MetaChecksum; readers validate names and offsets on open and can verify the
// checksum on demand.
//
// Example usage:
//
//	err := serialization.WriteSafeTensors("grid.safetensors", stateDict, meta)
//
//	r, err := serialization.NewSafeTensorsReader("grid.safetensors")
//	defer r.Close()
//	table, err := r.LoadTensor("embeddings", backend)
package serialization
