// Package chunkstore implements a chunked on-disk array store.
//
// Each array is a directory:
//
//	Layout:
//	  .zarray        JSON metadata (shape, dtype, chunks, compressor, ...)
//	  0.0, 0.1, ...  chunk files named by dot-joined chunk indices
//
// Chunks hold row-major little-endian element data and are stored at full
// chunk shape; edge chunks are padded on write and trimmed on read. Chunks
// may be gzip-compressed. A missing chunk file reads as the fill value.
//
// Reads are windowed: Slice restricts the region, and Read fetches only
// the chunks intersecting it, concurrently. The chunk shape and compressor
// used at write time are discovered from the array directory, never from
// the caller's specification, so an array can be read back regardless of
// how it was chunked or compressed when written.
//
// Example:
//
//	arr, err := chunkstore.Open(ctx, spec)
//	if err != nil {
//	    return err
//	}
//	raw, err := arr.Slice(sel).WithDType(tensor.Float32).Read(ctx)
package chunkstore
