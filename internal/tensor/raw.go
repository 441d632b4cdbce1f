package tensor

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// RawTensor is the low-level host tensor representation: a contiguous
// row-major byte buffer plus shape and runtime type information.
type RawTensor struct {
	shape Shape
	dtype DataType
	data  []byte
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zero-initialized.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		shape: shape.Clone(),
		dtype: dtype,
		data:  make([]byte, shape.NumElements()*dtype.Size()),
	}, nil
}

// NewRawFromBytes wraps an existing byte buffer as a RawTensor.
// The buffer is used directly, not copied.
func NewRawFromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want := shape.NumElements() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("buffer size %d does not match shape %v dtype %s (want %d)", len(data), shape, dtype, want)
	}
	return &RawTensor{shape: shape.Clone(), dtype: dtype, data: data}, nil
}

// FromFloat32s builds a Float32 RawTensor from a value slice.
func FromFloat32s(shape Shape, values []float32) (*RawTensor, error) {
	r, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	if len(values) != r.NumElements() {
		return nil, fmt.Errorf("got %d values for shape %v (want %d)", len(values), shape, r.NumElements())
	}
	copy(r.AsFloat32(), values)
	return r, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat16 interprets the data as a []float16.Float16 bit pattern slice.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []float16.Float16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float16.Float16)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsBFloat16 interprets the data as a []bfloat16.BF16 bit pattern slice.
// Panics if the tensor's dtype is not BFloat16.
func (r *RawTensor) AsBFloat16() []bfloat16.BF16 {
	if r.dtype != BFloat16 {
		panic(fmt.Sprintf("tensor dtype is %s, not bfloat16", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*bfloat16.BF16)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", r.dtype))
	}
	return r.data
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	if r.dtype != Bool {
		panic(fmt.Sprintf("tensor dtype is %s, not bool", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*bool)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Clone returns a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return &RawTensor{shape: r.shape.Clone(), dtype: r.dtype, data: data}
}

// Equal reports whether two tensors have identical shape, dtype, and data.
func (r *RawTensor) Equal(other *RawTensor) bool {
	return r.dtype == other.dtype && r.shape.Equal(other.shape) && bytes.Equal(r.data, other.data)
}

// Slice copies out the region selected by sel. Components of sel beyond the
// tensor's axis count are rejected; missing trailing components select full
// axes.
func (r *RawTensor) Slice(sel Slice) (*RawTensor, error) {
	starts, stops, err := sel.Bounds(r.shape)
	if err != nil {
		return nil, err
	}
	outShape := make(Shape, len(r.shape))
	for i := range r.shape {
		outShape[i] = stops[i] - starts[i]
	}

	esize := r.dtype.Size()
	out := &RawTensor{
		shape: outShape,
		dtype: r.dtype,
		data:  make([]byte, outShape.NumElements()*esize),
	}
	if len(r.shape) == 0 {
		copy(out.data, r.data)
		return out, nil
	}

	ndim := len(r.shape)
	last := ndim - 1
	rowLen := stops[last] - starts[last]
	srcStrides := r.shape.ComputeStrides()

	// Number of rows in the output region.
	rows := 1
	for i := 0; i < last; i++ {
		rows *= outShape[i]
	}
	if rowLen == 0 || rows == 0 {
		return out, nil
	}

	dstOff := 0
	for k := 0; k < rows; k++ {
		// Decode row index k into per-axis coordinates of the region.
		srcOff := starts[last]
		rem := k
		for i := last - 1; i >= 0; i-- {
			coord := rem % outShape[i]
			rem /= outShape[i]
			srcOff += (starts[i] + coord) * srcStrides[i]
		}
		copy(out.data[dstOff*esize:(dstOff+rowLen)*esize], r.data[srcOff*esize:(srcOff+rowLen)*esize])
		dstOff += rowLen
	}
	return out, nil
}

// RepeatLeading replicates the tensor n times along a newly introduced
// leading axis, producing shape (n,)+Shape(). n == 0 yields an empty
// tensor, the case of a worker owning no experts.
func (r *RawTensor) RepeatLeading(n int) (*RawTensor, error) {
	if n < 0 {
		return nil, fmt.Errorf("repeat count %d must be non-negative", n)
	}
	outShape := make(Shape, 0, len(r.shape)+1)
	outShape = append(outShape, n)
	outShape = append(outShape, r.shape...)
	data := make([]byte, n*len(r.data))
	for i := 0; i < n; i++ {
		copy(data[i*len(r.data):], r.data)
	}
	return &RawTensor{shape: outShape, dtype: r.dtype, data: data}, nil
}
