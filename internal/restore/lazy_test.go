package restore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

func TestLazyArrayDeclaredDType(t *testing.T) {
	lit := denseFixture(t, tensor.Shape{2, 2})
	stored := arrayspec.Stored{
		Driver:   "zarr",
		KVStore:  arrayspec.KVStore{Driver: "file", Path: "p"},
		Metadata: &arrayspec.Metadata{Shape: []int{2, 2}, DType: "<f8"},
	}
	cast := tensor.BFloat16

	tests := []struct {
		name  string
		val   arrayspec.Value
		cast  *tensor.DataType
		want  tensor.DataType
		known bool
	}{
		{"literal declares its own dtype", arrayspec.Literal{Tensor: lit}, nil, tensor.Float32, true},
		{"stored declares metadata dtype", stored, nil, tensor.Float64, true},
		{"cast overrides the entry", stored, &cast, tensor.BFloat16, true},
		{"opaque has no dtype", arrayspec.Opaque{Value: 7}, nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lazy := FromValue(tt.val, func(context.Context) (any, error) { return nil, nil }, tt.cast)
			dt, ok := lazy.DType()
			assert.Equal(t, tt.known, ok)
			if tt.known {
				assert.Equal(t, tt.want, dt)
			}
		})
	}
}

// TestLazyArrayGetReruns: Get re-triggers the underlying read every time.
func TestLazyArrayGetReruns(t *testing.T) {
	calls := 0
	lazy := FromValue(arrayspec.Opaque{Value: nil}, func(context.Context) (any, error) {
		calls++
		return calls, nil
	}, nil)

	got, err := lazy.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = lazy.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}
