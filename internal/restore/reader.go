package restore

import (
	"context"
	"fmt"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/chunkstore"
	"github.com/sparsify-ml/sparsify/internal/partition"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// DefaultMaxExperts is the reference extent of the expert axis used to
// evaluate a partitioner slice's leading component. The partitioner
// computed its slices against the target model independently of this
// engine, so the leading component is resolved against this bound rather
// than the stored array (which has no expert axis at all).
const DefaultMaxExperts = 1024

// Deserializer materializes an entire resolved spec across a device mesh.
// Used only in the full-mesh restore path.
type Deserializer interface {
	Deserialize(ctx context.Context, mesh partition.Mesh, axes partition.AxisLayout, spec arrayspec.Stored) (*tensor.RawTensor, error)
}

// Reader builds deferred parameter reads against a checkpoint. In
// dense-to-sparse mode it performs broadcast restoration: eligible expert
// parameters are read from their dense stored form and replicated across
// the experts the worker owns. Without it, every parameter is read (and
// possibly sliced) as stored.
type Reader struct {
	broadcast    bool
	maxExperts   int
	deserializer Deserializer
}

// NewReader returns a plain reader with no expert broadcasting.
func NewReader() *Reader {
	return &Reader{maxExperts: DefaultMaxExperts}
}

// NewDenseToSparseReader returns a broadcasting reader. maxExperts bounds
// the expert axis when evaluating partitioner slices; it must be at least
// the destination model's expert count or the computed broadcast factor
// will be wrong.
func NewDenseToSparseReader(maxExperts int) (*Reader, error) {
	if maxExperts <= 0 {
		return nil, fmt.Errorf("max experts %d must be positive", maxExperts)
	}
	return &Reader{broadcast: true, maxExperts: maxExperts}, nil
}

// WithDeserializer returns a copy of the reader that delegates full-mesh
// restores to d.
func (r *Reader) WithDeserializer(d Deserializer) *Reader {
	out := *r
	out.deserializer = d
	return &out
}

// BuildLazyArray is the per-parameter restore entry point: it returns a
// handle whose Get runs the full decision tree and suspends only on
// storage reads. Nothing is read until Get is called.
func (r *Reader) BuildLazyArray(info ParamInfo, val arrayspec.Value, ckptDir string, restoreDType *tensor.DataType) *LazyArray {
	get := func(ctx context.Context) (any, error) {
		return r.read(ctx, info, val, ckptDir, restoreDType)
	}
	return FromValue(val, get, restoreDType)
}

// read dispatches on the entry variant:
//
//  1. literal with a local chunk: slice-then-broadcast when eligible,
//     plain slice otherwise;
//  2. literal without a local chunk: returned unchanged;
//  3. opaque entry: returned unchanged;
//  4. stored spec: resolve, validate, then read from the store.
func (r *Reader) read(ctx context.Context, info ParamInfo, val arrayspec.Value, ckptDir string, restoreDType *tensor.DataType) (any, error) {
	switch v := val.(type) {
	case arrayspec.Literal:
		if v.Tensor == nil {
			return nil, fmt.Errorf("parameter %q: literal entry has no tensor", info.Name)
		}
		if info.LocalChunk == nil {
			return v.Tensor, nil
		}
		return r.readRegion(info, func(sel tensor.Slice) (*tensor.RawTensor, error) {
			return v.Tensor.Slice(sel)
		})
	case arrayspec.Opaque:
		return v.Value, nil
	case arrayspec.Stored:
		return r.readStored(ctx, info, v, ckptDir, restoreDType)
	default:
		return nil, fmt.Errorf("parameter %q: unknown entry variant %T", info.Name, val)
	}
}

// readStored resolves and validates the spec, then reads the worker's
// region from the chunked array store, broadcasting when eligible.
func (r *Reader) readStored(ctx context.Context, info ParamInfo, spec arrayspec.Stored, ckptDir string, restoreDType *tensor.DataType) (any, error) {
	resolved, err := arrayspec.Resolve(spec, ckptDir)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", info.Name, err)
	}

	if err := validateShape(info, tensor.Shape(resolved.Metadata.Shape), r.broadcast); err != nil {
		return nil, err
	}
	if err := validateDType(info, resolved); err != nil {
		return nil, err
	}

	if restoreDType != nil {
		resolved.DType = restoreDType.String()
	}

	if info.Mesh != nil && info.Axes != nil {
		// Full-mesh distributed materialization. Broadcasting is not
		// applied on this path: dense-to-sparse restore under full-array
		// distributed reads is unsupported.
		if r.deserializer == nil {
			return nil, fmt.Errorf("parameter %q: mesh restore requested but no deserializer is configured", info.Name)
		}
		return r.deserializer.Deserialize(ctx, *info.Mesh, info.Axes, resolved)
	}

	arr, err := chunkstore.Open(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", info.Name, err)
	}

	if info.LocalChunk == nil {
		return arr.Read(ctx)
	}
	return r.readRegion(info, func(sel tensor.Slice) (*tensor.RawTensor, error) {
		return arr.Slice(sel).Read(ctx)
	})
}

// readRegion reads the region a local chunk selects. In dense-to-sparse
// mode the stored array lacks the expert axis, so for expert parameters
// the chunk's leading component (which indexes that axis) is dropped
// before reading; broadcast-eligible parameters are then replicated per
// expert, while optimizer slots take the dense region as is.
func (r *Reader) readRegion(info ParamInfo, read func(sel tensor.Slice) (*tensor.RawTensor, error)) (*tensor.RawTensor, error) {
	sel := info.LocalChunk.Slice
	if !r.broadcast || !info.IsExpertParam() {
		out, err := read(sel)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", info.Name, err)
		}
		return out, nil
	}
	if info.BroadcastEligible() {
		return r.sliceThenBroadcast(info, read)
	}
	out, err := read(sel.DropLeading())
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", info.Name, err)
	}
	return out, nil
}

// sliceThenBroadcast reads the dense region this worker owns and
// replicates it across the worker's experts. The local chunk's leading
// component indexes the expert axis of the target shape; the stored array
// lacks that axis, so the leading component is dropped before reading and
// evaluated against the maximum expert count to obtain the replication
// factor.
func (r *Reader) sliceThenBroadcast(info ParamInfo, read func(rest tensor.Slice) (*tensor.RawTensor, error)) (*tensor.RawTensor, error) {
	sel := info.LocalChunk.Slice
	lead := tensor.All()
	if len(sel) > 0 {
		lead = sel[0]
	}

	numExperts, err := lead.Len(r.maxExperts)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: expert slice: %w", info.Name, err)
	}

	dense, err := read(sel.DropLeading())
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", info.Name, err)
	}

	out, err := dense.RepeatLeading(numExperts)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: broadcast: %w", info.Name, err)
	}
	return out, nil
}
