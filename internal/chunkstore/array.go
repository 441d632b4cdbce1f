package chunkstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// Array is a readable handle on a stored chunked array, optionally
// restricted to a window and optionally casting on read. Handles are
// immutable: Slice and WithDType return derived handles.
type Array struct {
	dir    string
	meta   *arrayMeta
	shape  tensor.Shape
	dtype  tensor.DataType
	window tensor.Slice
	cast   *tensor.DataType
}

// Open opens an array for reading from a resolved specification. The chunk
// shape and compressor are taken from the array directory, so the spec may
// have been written with different storage settings. If the spec carries
// metadata, its shape and dtype are checked against the stored array; if it
// carries a top-level cast dtype, reads convert to it.
func Open(ctx context.Context, spec arrayspec.Stored) (*Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta, err := readMeta(spec.KVStore.Path)
	if err != nil {
		return nil, err
	}
	dtype, err := ParseEncoding(meta.DType)
	if err != nil {
		return nil, err
	}

	if spec.Metadata != nil {
		if !tensor.Shape(spec.Metadata.Shape).Equal(tensor.Shape(meta.Shape)) {
			return nil, fmt.Errorf("%w: spec shape %v, stored shape %v", ErrSpecMismatch, spec.Metadata.Shape, meta.Shape)
		}
		if spec.Metadata.DType != meta.DType {
			return nil, fmt.Errorf("%w: spec dtype %q, stored dtype %q", ErrSpecMismatch, spec.Metadata.DType, meta.DType)
		}
	}

	arr := &Array{
		dir:   spec.KVStore.Path,
		meta:  meta,
		shape: tensor.Shape(meta.Shape).Clone(),
		dtype: dtype,
	}
	if spec.DType != "" {
		dt, ok := tensor.ParseDataType(spec.DType)
		if !ok {
			return nil, fmt.Errorf("%w: cast dtype %q", ErrUnsupportedDType, spec.DType)
		}
		arr = arr.WithDType(dt)
	}
	return arr, nil
}

// Shape returns the full stored array shape.
func (a *Array) Shape() tensor.Shape {
	return a.shape
}

// DType returns the stored element type.
func (a *Array) DType() tensor.DataType {
	return a.dtype
}

// ReadDType returns the element type reads produce, accounting for a cast.
func (a *Array) ReadDType() tensor.DataType {
	if a.cast != nil {
		return *a.cast
	}
	return a.dtype
}

// Slice returns a handle restricted to the given window. Successive calls
// replace the window rather than composing.
func (a *Array) Slice(sel tensor.Slice) *Array {
	out := *a
	out.window = sel
	return &out
}

// WithDType returns a handle whose reads convert elements to dt.
func (a *Array) WithDType(dt tensor.DataType) *Array {
	out := *a
	out.cast = &dt
	return &out
}

// chunkName returns the file name of the chunk at the given chunk indices.
// ci is never empty: metadata validation rejects zero-dimension arrays, so
// every chunk index has at least one component.
func chunkName(ci []int) string {
	parts := make([]string, len(ci))
	for i, c := range ci {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ".")
}
