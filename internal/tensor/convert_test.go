package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertFloat32ToFloat64(t *testing.T) {
	r, err := FromFloat32s(Shape{3}, []float32{1.5, -2.25, 0})
	require.NoError(t, err)

	got, err := Convert(r, Float64)
	require.NoError(t, err)
	assert.Equal(t, Float64, got.DType())
	assert.Equal(t, []float64{1.5, -2.25, 0}, got.AsFloat64())
}

func TestConvertFloat16RoundTrip(t *testing.T) {
	// Values exactly representable in float16.
	r, err := FromFloat32s(Shape{4}, []float32{1.5, -0.25, 2048, 0})
	require.NoError(t, err)

	half, err := Convert(r, Float16)
	require.NoError(t, err)
	back, err := Convert(half, Float32)
	require.NoError(t, err)
	assert.Equal(t, r.AsFloat32(), back.AsFloat32())
}

func TestConvertBFloat16RoundTrip(t *testing.T) {
	// Values exactly representable in bfloat16 (8-bit mantissa).
	r, err := FromFloat32s(Shape{3}, []float32{1, -2, 0.5})
	require.NoError(t, err)

	bf, err := Convert(r, BFloat16)
	require.NoError(t, err)

	// bfloat16 is the upper half of the float32 bit pattern, so every
	// element must convert individually, not as a reinterpreted buffer.
	bits := bf.AsBFloat16()
	require.Len(t, bits, 3)
	assert.Equal(t, uint16(0x3F80), uint16(bits[0])) // 1.0
	assert.Equal(t, uint16(0xC000), uint16(bits[1])) // -2.0
	assert.Equal(t, uint16(0x3F00), uint16(bits[2])) // 0.5

	back, err := Convert(bf, Float32)
	require.NoError(t, err)
	assert.Equal(t, r.AsFloat32(), back.AsFloat32())
}

func TestConvertSameDTypeCopies(t *testing.T) {
	r, err := FromFloat32s(Shape{2}, []float32{1, 2})
	require.NoError(t, err)

	got, err := Convert(r, Float32)
	require.NoError(t, err)
	got.AsFloat32()[0] = 42
	assert.Equal(t, float32(1), r.AsFloat32()[0])
}

func TestConvertBoolRejected(t *testing.T) {
	r, err := NewRaw(Shape{2}, Bool)
	require.NoError(t, err)

	_, err = Convert(r, Float32)
	require.Error(t, err)
}

func TestConvertIntToFloat(t *testing.T) {
	r, err := NewRaw(Shape{3}, Int64)
	require.NoError(t, err)
	copy(r.AsInt64(), []int64{-7, 0, 1 << 20})

	got, err := Convert(r, Float32)
	require.NoError(t, err)
	assert.Equal(t, []float32{-7, 0, 1 << 20}, got.AsFloat32())
}
