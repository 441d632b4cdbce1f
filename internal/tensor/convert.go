package tensor

import (
	"fmt"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Convert returns a copy of r with every element cast to dt. Bool tensors
// cannot be converted to numeric types or vice versa. Conversion to a
// narrower type rounds the same way the dtype's encoding rounds.
func Convert(r *RawTensor, dt DataType) (*RawTensor, error) {
	if r.DType() == dt {
		return r.Clone(), nil
	}
	if r.DType() == Bool || dt == Bool {
		return nil, fmt.Errorf("cannot convert %s to %s", r.DType(), dt)
	}

	out := &RawTensor{
		shape: r.Shape().Clone(),
		dtype: dt,
		data:  make([]byte, r.NumElements()*dt.Size()),
	}
	n := r.NumElements()
	if n == 0 {
		return out, nil
	}

	// float64 is wide enough to carry every supported numeric encoding.
	vals := make([]float64, n)
	switch r.DType() {
	case Float32:
		for i, v := range r.AsFloat32() {
			vals[i] = float64(v)
		}
	case Float64:
		copy(vals, r.AsFloat64())
	case Float16:
		for i, v := range r.AsFloat16() {
			vals[i] = float64(v.Float32())
		}
	case BFloat16:
		for i, v := range r.AsBFloat16() {
			vals[i] = float64(bfloat16.ToFloat32(v))
		}
	case Int32:
		for i, v := range r.AsInt32() {
			vals[i] = float64(v)
		}
	case Int64:
		for i, v := range r.AsInt64() {
			vals[i] = float64(v)
		}
	case Uint8:
		for i, v := range r.AsUint8() {
			vals[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported source dtype %s", r.DType())
	}

	switch dt {
	case Float32:
		dst := out.AsFloat32()
		for i, v := range vals {
			dst[i] = float32(v)
		}
	case Float64:
		copy(out.AsFloat64(), vals)
	case Float16:
		dst := out.AsFloat16()
		for i, v := range vals {
			dst[i] = float16.Fromfloat32(float32(v))
		}
	case BFloat16:
		dst := out.AsBFloat16()
		for i, v := range vals {
			dst[i] = bfloat16.FromFloat32(float32(v))
		}
	case Int32:
		dst := out.AsInt32()
		for i, v := range vals {
			dst[i] = int32(v)
		}
	case Int64:
		dst := out.AsInt64()
		for i, v := range vals {
			dst[i] = int64(v)
		}
	case Uint8:
		dst := out.AsUint8()
		for i, v := range vals {
			dst[i] = uint8(v)
		}
	default:
		return nil, fmt.Errorf("unsupported target dtype %s", dt)
	}
	return out, nil
}
