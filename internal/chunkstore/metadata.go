package chunkstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// MetadataFile is the per-array metadata file name.
const MetadataFile = ".zarray"

// CompressorGzip identifies gzip chunk compression.
const CompressorGzip = "gzip"

// arrayMeta is the on-disk array metadata.
type arrayMeta struct {
	ZarrFormat int                   `json:"zarr_format"`
	Shape      []int                 `json:"shape"`
	Chunks     []int                 `json:"chunks"`
	DType      string                `json:"dtype"`
	Compressor *arrayspec.Compressor `json:"compressor"`
	FillValue  *float64              `json:"fill_value"`
	Order      string                `json:"order"`
}

func (m *arrayMeta) validate() error {
	if len(m.Shape) == 0 {
		return fmt.Errorf("%w: empty shape", ErrBadMetadata)
	}
	if len(m.Chunks) != len(m.Shape) {
		return fmt.Errorf("%w: chunk rank %d does not match shape rank %d", ErrBadMetadata, len(m.Chunks), len(m.Shape))
	}
	for i, c := range m.Chunks {
		if c <= 0 {
			return fmt.Errorf("%w: chunk extent %d on axis %d", ErrBadMetadata, c, i)
		}
	}
	if err := tensor.Shape(m.Shape).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMetadata, err)
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("%w: order %q (only row-major \"C\" is supported)", ErrBadMetadata, m.Order)
	}
	if m.Compressor != nil && m.Compressor.ID != CompressorGzip {
		return fmt.Errorf("%w: compressor %q", ErrBadMetadata, m.Compressor.ID)
	}
	if _, err := ParseEncoding(m.DType); err != nil {
		return err
	}
	return nil
}

func readMeta(dir string) (*arrayMeta, error) {
	bts, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotAnArray, dir)
		}
		return nil, fmt.Errorf("read array metadata: %w", err)
	}
	var meta arrayMeta
	if err := json.Unmarshal(bts, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMetadata, err)
	}
	if err := meta.validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

func writeMeta(dir string, meta *arrayMeta) error {
	bts, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode array metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), bts, 0o644); err != nil {
		return fmt.Errorf("write array metadata: %w", err)
	}
	return nil
}

// ParseEncoding converts a numpy-style dtype encoding to a DataType.
func ParseEncoding(s string) (tensor.DataType, error) {
	switch s {
	case "<f4":
		return tensor.Float32, nil
	case "<f8":
		return tensor.Float64, nil
	case "<f2":
		return tensor.Float16, nil
	case "bfloat16":
		return tensor.BFloat16, nil
	case "<i4":
		return tensor.Int32, nil
	case "<i8":
		return tensor.Int64, nil
	case "|u1":
		return tensor.Uint8, nil
	case "|b1":
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
	}
}

// EncodingFor converts a DataType to its numpy-style dtype encoding.
func EncodingFor(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return "<f4"
	case tensor.Float64:
		return "<f8"
	case tensor.Float16:
		return "<f2"
	case tensor.BFloat16:
		return "bfloat16"
	case tensor.Int32:
		return "<i4"
	case tensor.Int64:
		return "<i8"
	case tensor.Uint8:
		return "|u1"
	case tensor.Bool:
		return "|b1"
	default:
		panic(fmt.Sprintf("no encoding for dtype %s", dt))
	}
}
