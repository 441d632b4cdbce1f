package arrayspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparsify-ml/sparsify/internal/tensor"
)

func TestMarshalStoredRoundTrip(t *testing.T) {
	data, err := Marshal(storedFixture())
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, storedFixture(), got)
}

func TestMarshalLiteralRoundTrip(t *testing.T) {
	raw, err := tensor.FromFloat32s(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	data, err := Marshal(Literal{Tensor: raw})
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	lit, ok := got.(Literal)
	require.True(t, ok)
	assert.True(t, lit.Tensor.Equal(raw))
}

func TestMarshalOpaqueRoundTrip(t *testing.T) {
	data, err := Marshal(Opaque{Value: float64(1000)})
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	op, ok := got.(Opaque)
	require.True(t, ok)
	assert.Equal(t, float64(1000), op.Value)
}

func TestUnmarshalUnknownKind(t *testing.T) {
	_, err := Unmarshal([]byte(`{"kind":"mystery"}`))
	require.Error(t, err)
}
