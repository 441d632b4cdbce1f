package chunkstore

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// Read materializes the handle's window (the whole array when no window is
// set). Only chunks intersecting the window are fetched; fetches run
// concurrently. Missing chunk files read as the fill value.
func (a *Array) Read(ctx context.Context) (*tensor.RawTensor, error) {
	starts, stops, err := a.window.Bounds(a.shape)
	if err != nil {
		return nil, fmt.Errorf("slice %s: %w", a.dir, err)
	}

	outShape := make(tensor.Shape, len(a.shape))
	for i := range a.shape {
		outShape[i] = stops[i] - starts[i]
	}
	esize := a.dtype.Size()
	out := make([]byte, outShape.NumElements()*esize)

	// Chunk index range per axis intersecting the window.
	loChunk := make([]int, len(a.shape))
	hiChunk := make([]int, len(a.shape))
	empty := false
	for i := range a.shape {
		if stops[i] <= starts[i] {
			empty = true
			break
		}
		loChunk[i] = starts[i] / a.meta.Chunks[i]
		hiChunk[i] = (stops[i]-1)/a.meta.Chunks[i] + 1
	}

	if !empty {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for _, ci := range enumerateChunks(loChunk, hiChunk) {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return a.readChunkInto(ci, out, outShape, starts, stops)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	raw, err := tensor.NewRawFromBytes(outShape, a.dtype, out)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", a.dir, err)
	}
	if a.cast != nil && *a.cast != a.dtype {
		return tensor.Convert(raw, *a.cast)
	}
	return raw, nil
}

// readChunkInto copies the part of chunk ci that falls inside the window
// [starts, stops) into the output buffer.
func (a *Array) readChunkInto(ci []int, out []byte, outShape tensor.Shape, starts, stops []int) error {
	ndim := len(a.shape)
	chunkShape := tensor.Shape(a.meta.Chunks)

	// Intersection of the chunk's extent with the window, in array coords.
	lo := make([]int, ndim)
	hi := make([]int, ndim)
	for i := 0; i < ndim; i++ {
		org := ci[i] * a.meta.Chunks[i]
		end := org + a.meta.Chunks[i]
		if end > a.shape[i] {
			end = a.shape[i]
		}
		lo[i] = max(org, starts[i])
		hi[i] = min(end, stops[i])
		if hi[i] <= lo[i] {
			return nil
		}
	}

	buf, err := a.readChunk(ci)
	if err != nil {
		return err
	}

	esize := a.dtype.Size()
	srcStart := make([]int, ndim)
	dstStart := make([]int, ndim)
	size := make([]int, ndim)
	for i := 0; i < ndim; i++ {
		srcStart[i] = lo[i] - ci[i]*a.meta.Chunks[i]
		dstStart[i] = lo[i] - starts[i]
		size[i] = hi[i] - lo[i]
	}
	copyRegion(out, outShape, dstStart, buf, chunkShape, srcStart, size, esize)
	return nil
}

// readChunk loads one chunk at full chunk shape, decompressing if needed.
// A missing chunk file yields a buffer of the fill value.
func (a *Array) readChunk(ci []int) ([]byte, error) {
	want := tensor.Shape(a.meta.Chunks).NumElements() * a.dtype.Size()
	path := filepath.Join(a.dir, chunkName(ci))

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return a.fillChunk(want), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open chunk %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if a.meta.Compressor != nil && a.meta.Compressor.ID == CompressorGzip {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptChunk, path, err)
		}
		defer gz.Close()
		r = gz
	}

	buf := make([]byte, want)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptChunk, path, err)
	}
	return buf, nil
}

// fillChunk builds a chunk buffer holding the metadata fill value.
// Only a zero fill (or absent fill value) is supported; other fills would
// need per-dtype encoding and have not been needed.
func (a *Array) fillChunk(size int) []byte {
	return make([]byte, size)
}

// enumerateChunks lists every chunk index tuple in [lo, hi) per axis.
func enumerateChunks(lo, hi []int) [][]int {
	ndim := len(lo)
	total := 1
	for i := 0; i < ndim; i++ {
		total *= hi[i] - lo[i]
	}
	out := make([][]int, 0, total)
	ci := make([]int, ndim)
	copy(ci, lo)
	for {
		c := make([]int, ndim)
		copy(c, ci)
		out = append(out, c)
		// Odometer increment.
		i := ndim - 1
		for ; i >= 0; i-- {
			ci[i]++
			if ci[i] < hi[i] {
				break
			}
			ci[i] = lo[i]
		}
		if i < 0 {
			return out
		}
	}
}

// copyRegion copies an n-dimensional region of `size` elements between two
// row-major buffers, starting at dstStart in dst and srcStart in src.
func copyRegion(dst []byte, dstShape tensor.Shape, dstStart []int, src []byte, srcShape tensor.Shape, srcStart []int, size []int, esize int) {
	ndim := len(size)
	if ndim == 0 {
		copy(dst, src)
		return
	}
	dstStrides := dstShape.ComputeStrides()
	srcStrides := srcShape.ComputeStrides()
	last := ndim - 1
	rowLen := size[last]

	rows := 1
	for i := 0; i < last; i++ {
		rows *= size[i]
	}
	for k := 0; k < rows; k++ {
		dstOff := dstStart[last]
		srcOff := srcStart[last]
		rem := k
		for i := last - 1; i >= 0; i-- {
			coord := rem % size[i]
			rem /= size[i]
			dstOff += (dstStart[i] + coord) * dstStrides[i]
			srcOff += (srcStart[i] + coord) * srcStrides[i]
		}
		copy(dst[dstOff*esize:(dstOff+rowLen)*esize], src[srcOff*esize:(srcOff+rowLen)*esize])
	}
}
