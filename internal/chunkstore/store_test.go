package chunkstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

func fixture(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	values := make([]float32, shape.NumElements())
	for i := range values {
		values[i] = float32(i)
	}
	raw, err := tensor.FromFloat32s(shape, values)
	require.NoError(t, err)
	return raw
}

func TestWriteReadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts WriteOptions
	}{
		{name: "single chunk uncompressed", opts: WriteOptions{}},
		{name: "multi chunk", opts: WriteOptions{Chunks: tensor.Shape{3, 4}}},
		{name: "multi chunk gzip", opts: WriteOptions{Chunks: tensor.Shape{3, 4}, Compressor: CompressorGzip}},
		{name: "uneven edge chunks", opts: WriteOptions{Chunks: tensor.Shape{4, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := fixture(t, tensor.Shape{6, 8})
			dir := filepath.Join(t.TempDir(), "arr")

			spec, err := Write(dir, raw, tt.opts)
			require.NoError(t, err)

			arr, err := Open(context.Background(), spec)
			require.NoError(t, err)

			got, err := arr.Read(context.Background())
			require.NoError(t, err)
			assert.True(t, got.Equal(raw))
		})
	}
}

// TestReadToleratesStrippedSpec verifies that a spec with chunk shape and
// compressor removed (as the resolver produces) still opens an array that
// was written chunked and compressed.
func TestReadToleratesStrippedSpec(t *testing.T) {
	raw := fixture(t, tensor.Shape{6, 8})
	dir := filepath.Join(t.TempDir(), "arr")

	spec, err := Write(dir, raw, WriteOptions{Chunks: tensor.Shape{2, 3}, Compressor: CompressorGzip})
	require.NoError(t, err)

	stripped, err := arrayspec.Resolve(spec, t.TempDir())
	require.NoError(t, err)
	require.Nil(t, stripped.Metadata.Chunks)
	require.Nil(t, stripped.Metadata.Compressor)

	arr, err := Open(context.Background(), stripped)
	require.NoError(t, err)
	got, err := arr.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(raw))
}

func TestSlicedRead(t *testing.T) {
	raw := fixture(t, tensor.Shape{6, 8})
	dir := filepath.Join(t.TempDir(), "arr")

	spec, err := Write(dir, raw, WriteOptions{Chunks: tensor.Shape{2, 3}})
	require.NoError(t, err)

	arr, err := Open(context.Background(), spec)
	require.NoError(t, err)

	sel := tensor.Slice{tensor.NewRange(1, 4), tensor.NewRange(2, 7)}
	got, err := arr.Slice(sel).Read(context.Background())
	require.NoError(t, err)

	want, err := raw.Slice(sel)
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}

func TestEmptyWindow(t *testing.T) {
	raw := fixture(t, tensor.Shape{4, 4})
	dir := filepath.Join(t.TempDir(), "arr")

	spec, err := Write(dir, raw, WriteOptions{})
	require.NoError(t, err)

	arr, err := Open(context.Background(), spec)
	require.NoError(t, err)

	got, err := arr.Slice(tensor.Slice{tensor.NewRange(2, 2)}).Read(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Shape().Equal(tensor.Shape{0, 4}))
	assert.Equal(t, 0, got.NumElements())
}

func TestMissingChunkReadsAsFill(t *testing.T) {
	raw := fixture(t, tensor.Shape{4, 4})
	dir := filepath.Join(t.TempDir(), "arr")

	spec, err := Write(dir, raw, WriteOptions{Chunks: tensor.Shape{2, 2}})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "1.1")))

	arr, err := Open(context.Background(), spec)
	require.NoError(t, err)
	got, err := arr.Read(context.Background())
	require.NoError(t, err)

	vals := got.AsFloat32()
	// Bottom-right 2x2 block reads as zeros.
	assert.Equal(t, float32(0), vals[2*4+2+0])
	assert.Equal(t, float32(0), vals[3*4+3])
	// Other blocks intact.
	assert.Equal(t, raw.AsFloat32()[0], vals[0])
	assert.Equal(t, raw.AsFloat32()[2*4+1], vals[2*4+1])
}

func TestCastAdapter(t *testing.T) {
	raw := fixture(t, tensor.Shape{2, 3})
	dir := filepath.Join(t.TempDir(), "arr")

	spec, err := Write(dir, raw, WriteOptions{})
	require.NoError(t, err)

	arr, err := Open(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, arr.DType())
	assert.Equal(t, tensor.Float64, arr.WithDType(tensor.Float64).ReadDType())

	got, err := arr.WithDType(tensor.Float64).Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, tensor.Float64, got.DType())
	for i, v := range raw.AsFloat32() {
		assert.Equal(t, float64(v), got.AsFloat64()[i])
	}
}

func TestCastViaSpecDType(t *testing.T) {
	raw := fixture(t, tensor.Shape{2, 2})
	dir := filepath.Join(t.TempDir(), "arr")

	spec, err := Write(dir, raw, WriteOptions{})
	require.NoError(t, err)
	spec.DType = "bfloat16"

	arr, err := Open(context.Background(), spec)
	require.NoError(t, err)
	got, err := arr.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tensor.BFloat16, got.DType())
}

func TestOpenSpecMismatch(t *testing.T) {
	raw := fixture(t, tensor.Shape{2, 2})
	dir := filepath.Join(t.TempDir(), "arr")

	spec, err := Write(dir, raw, WriteOptions{})
	require.NoError(t, err)

	bad := spec.Clone()
	bad.Metadata.Shape = []int{4, 4}
	_, err = Open(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSpecMismatch))

	bad = spec.Clone()
	bad.Metadata.DType = "<f8"
	_, err = Open(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSpecMismatch))
}

func TestOpenMissingArray(t *testing.T) {
	spec := arrayspec.Stored{
		Driver:  "zarr",
		KVStore: arrayspec.KVStore{Driver: "file", Path: filepath.Join(t.TempDir(), "nope")},
	}
	_, err := Open(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAnArray))
}

// TestOpenRejectsZeroDimensionMetadata: chunk file names are dot-joined
// per-axis indices, so a zero-dimension array has no valid chunk name and
// must be rejected when its metadata is read.
func TestOpenRejectsZeroDimensionMetadata(t *testing.T) {
	dir := t.TempDir()
	meta := []byte(`{"zarr_format": 2, "shape": [], "chunks": [], "dtype": "<f4", "order": "C"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), meta, 0o644))

	spec := arrayspec.Stored{
		Driver:  "zarr",
		KVStore: arrayspec.KVStore{Driver: "file", Path: dir},
	}
	_, err := Open(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadMetadata))
}

func TestParseEncoding(t *testing.T) {
	for _, dt := range []tensor.DataType{
		tensor.Float32, tensor.Float64, tensor.Float16, tensor.BFloat16,
		tensor.Int32, tensor.Int64, tensor.Uint8, tensor.Bool,
	} {
		got, err := ParseEncoding(EncodingFor(dt))
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}

	_, err := ParseEncoding("<u2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedDType))
}
