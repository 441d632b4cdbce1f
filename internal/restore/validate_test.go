package restore

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

func TestValidateShapeExpertParam(t *testing.T) {
	info := ParamInfo{
		Name:  "target/layer0/expert/wi",
		Shape: tensor.Shape{8, 512, 2048},
	}

	// The checkpoint stores one dense copy without the expert axis.
	require.NoError(t, validateShape(info, tensor.Shape{512, 2048}, true))

	// Anything else mismatches, including the full target shape.
	err := validateShape(info, tensor.Shape{8, 512, 2048}, true)
	require.Error(t, err)

	var mismatch *ShapeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "target/layer0/expert/wi", mismatch.Name)
	assert.True(t, mismatch.Found.Equal(tensor.Shape{8, 512, 2048}))
	assert.True(t, mismatch.Expected.Equal(tensor.Shape{8, 512, 2048}))
	assert.True(t, strings.Contains(err.Error(), "[8 512 2048]"))
}

func TestValidateShapeOptimizerSlotNotStripped(t *testing.T) {
	info := ParamInfo{
		Name:  "target/layer0/expert/wi/m",
		Shape: tensor.Shape{512, 2048},
	}
	require.NoError(t, validateShape(info, tensor.Shape{512, 2048}, true))
	require.Error(t, validateShape(info, tensor.Shape{2048}, true))
}

func TestValidateShapeNonExpertParam(t *testing.T) {
	info := ParamInfo{
		Name:  "target/layer0/attention/query",
		Shape: tensor.Shape{512, 4096},
	}
	require.NoError(t, validateShape(info, tensor.Shape{512, 4096}, true))

	err := validateShape(info, tensor.Shape{512, 2048}, true)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "[512 2048]"))
	assert.True(t, strings.Contains(err.Error(), "[512 4096]"))
}

func TestValidateShapeBroadcastDisabled(t *testing.T) {
	// Without dense-to-sparse mode, expert params are expected at full shape.
	info := ParamInfo{
		Name:  "target/layer0/expert/wi",
		Shape: tensor.Shape{8, 512, 2048},
	}
	require.NoError(t, validateShape(info, tensor.Shape{8, 512, 2048}, false))
	require.Error(t, validateShape(info, tensor.Shape{512, 2048}, false))
}

func TestValidateShapeNilTargetSkips(t *testing.T) {
	info := ParamInfo{Name: "target/unknown"}
	require.NoError(t, validateShape(info, tensor.Shape{3, 3}, true))
}

func TestValidateDTypeLegacyUint16(t *testing.T) {
	info := ParamInfo{Name: "target/layer0/wi"}

	tests := []struct {
		name string
		spec arrayspec.Stored
		want bool
	}{
		{
			name: "top-level uint16",
			spec: arrayspec.Stored{DType: "uint16", Metadata: &arrayspec.Metadata{Shape: []int{2}, DType: "<f4"}},
			want: true,
		},
		{
			name: "metadata <u2",
			spec: arrayspec.Stored{Metadata: &arrayspec.Metadata{Shape: []int{2}, DType: "<u2"}},
			want: true,
		},
		{
			name: "float32 fine",
			spec: arrayspec.Stored{Metadata: &arrayspec.Metadata{Shape: []int{2}, DType: "<f4"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDType(info, tt.spec)
			if !tt.want {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var unsupported *UnsupportedDTypeError
			require.True(t, errors.As(err, &unsupported))
			assert.True(t, strings.Contains(err.Error(), "convert the checkpoint"))
		})
	}
}
