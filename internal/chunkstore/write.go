package chunkstore

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// WriteOptions configures how an array is chunked and compressed on disk.
type WriteOptions struct {
	Chunks     tensor.Shape // Chunk shape; defaults to the full array shape.
	Compressor string       // "" (none) or CompressorGzip.
}

// Write stores raw as a chunked array directory at dir and returns the
// access specification describing it. The spec's kvstore path is dir as
// given; callers embedding the spec in a checkpoint index typically
// rewrite it to a checkpoint-relative path first.
func Write(dir string, raw *tensor.RawTensor, opts WriteOptions) (arrayspec.Stored, error) {
	shape := raw.Shape()
	if len(shape) == 0 {
		return arrayspec.Stored{}, fmt.Errorf("cannot store scalar arrays (store them as literals)")
	}

	chunks := opts.Chunks
	if chunks == nil {
		chunks = shape.Clone()
	}
	if len(chunks) != len(shape) {
		return arrayspec.Stored{}, fmt.Errorf("chunk rank %d does not match array rank %d", len(chunks), len(shape))
	}
	for i, c := range chunks {
		if c <= 0 || c > shape[i] {
			return arrayspec.Stored{}, fmt.Errorf("chunk extent %d invalid for axis %d of extent %d", c, i, shape[i])
		}
	}

	var compressor *arrayspec.Compressor
	switch opts.Compressor {
	case "":
	case CompressorGzip:
		compressor = &arrayspec.Compressor{ID: CompressorGzip}
	default:
		return arrayspec.Stored{}, fmt.Errorf("%w: compressor %q", ErrBadMetadata, opts.Compressor)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return arrayspec.Stored{}, fmt.Errorf("create array dir: %w", err)
	}

	meta := &arrayMeta{
		ZarrFormat: 2,
		Shape:      shape,
		Chunks:     chunks,
		DType:      EncodingFor(raw.DType()),
		Compressor: compressor,
		Order:      "C",
	}
	if err := writeMeta(dir, meta); err != nil {
		return arrayspec.Stored{}, err
	}

	ndim := len(shape)
	nChunks := make([]int, ndim)
	for i := range shape {
		nChunks[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	esize := raw.DType().Size()
	chunkBytes := chunks.NumElements() * esize

	lo := make([]int, ndim)
	for _, ci := range enumerateChunks(lo, nChunks) {
		buf := make([]byte, chunkBytes)

		srcStart := make([]int, ndim)
		dstStart := make([]int, ndim)
		size := make([]int, ndim)
		for i := 0; i < ndim; i++ {
			srcStart[i] = ci[i] * chunks[i]
			end := srcStart[i] + chunks[i]
			if end > shape[i] {
				end = shape[i]
			}
			size[i] = end - srcStart[i]
		}
		copyRegion(buf, chunks, dstStart, raw.Data(), shape, srcStart, size, esize)

		if err := writeChunk(filepath.Join(dir, chunkName(ci)), buf, compressor != nil); err != nil {
			return arrayspec.Stored{}, err
		}
	}

	return arrayspec.Stored{
		Driver:  "zarr",
		KVStore: arrayspec.KVStore{Driver: "file", Path: dir},
		Metadata: &arrayspec.Metadata{
			Shape:      shape.Clone(),
			DType:      meta.DType,
			Chunks:     chunks.Clone(),
			Compressor: compressor,
		},
	}, nil
}

func writeChunk(path string, buf []byte, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chunk %s: %w", path, err)
	}

	if compress {
		gz := gzip.NewWriter(f)
		if _, err := gz.Write(buf); err != nil {
			_ = f.Close() // Best effort close on error
			return fmt.Errorf("write chunk %s: %w", path, err)
		}
		if err := gz.Close(); err != nil {
			_ = f.Close()
			return fmt.Errorf("write chunk %s: %w", path, err)
		}
	} else {
		if _, err := f.Write(buf); err != nil {
			_ = f.Close()
			return fmt.Errorf("write chunk %s: %w", path, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close chunk %s: %w", path, err)
	}
	return nil
}
