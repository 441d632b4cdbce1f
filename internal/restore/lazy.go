package restore

import (
	"context"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/chunkstore"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// GetFunc materializes one parameter. It suspends on storage reads and
// returns either a *tensor.RawTensor or an opaque pass-through value.
type GetFunc func(ctx context.Context) (any, error)

// LazyArray is a deferred-materialization handle for one parameter. It
// owns nothing until Get is called; the declared dtype is available
// without materializing, for planning upstream.
//
// Get is not idempotent: calling it again re-runs the read. Callers cache
// the result.
type LazyArray struct {
	get   GetFunc
	dtype *tensor.DataType
}

// FromValue wraps a deferred read for the given checkpoint entry. The
// declared dtype is restoreDType when a cast was requested; otherwise it
// is taken from the entry itself where the entry can declare one (literal
// tensors and stored specs). Opaque entries have no declared dtype.
func FromValue(v arrayspec.Value, get GetFunc, restoreDType *tensor.DataType) *LazyArray {
	dtype := restoreDType
	if dtype == nil {
		switch v := v.(type) {
		case arrayspec.Literal:
			if v.Tensor != nil {
				dt := v.Tensor.DType()
				dtype = &dt
			}
		case arrayspec.Stored:
			if v.Metadata != nil {
				if dt, err := chunkstore.ParseEncoding(v.Metadata.DType); err == nil {
					dtype = &dt
				}
			}
		}
	}
	return &LazyArray{get: get, dtype: dtype}
}

// DType returns the declared result dtype, if one is known.
func (l *LazyArray) DType() (tensor.DataType, bool) {
	if l.dtype == nil {
		return 0, false
	}
	return *l.dtype, true
}

// Get materializes the parameter, performing any deferred storage reads.
func (l *LazyArray) Get(ctx context.Context) (any, error) {
	return l.get(ctx)
}
