package restore

import (
	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// legacyUint16Encodings are the dtype spellings of the rejected legacy
// 16-bit unsigned encoding, at the spec top level and in metadata.
const (
	legacyUint16Name     = "uint16"
	legacyUint16Encoding = "<u2"
)

// expectedStoredShape returns the on-disk shape implied by the descriptor.
// Broadcast-eligible parameters store one dense copy without the leading
// expert axis; everything else is stored at the full target shape.
func expectedStoredShape(info ParamInfo, broadcast bool) tensor.Shape {
	if broadcast && info.BroadcastEligible() {
		return info.Shape.DropLeading()
	}
	return info.Shape
}

// validateShape checks the stored shape against the descriptor. The error
// reports the full target shape, not the stripped one, since that is the
// shape an operator compares against the model configuration.
func validateShape(info ParamInfo, stored tensor.Shape, broadcast bool) error {
	if info.Shape == nil {
		return nil
	}
	if !stored.Equal(expectedStoredShape(info, broadcast)) {
		return &ShapeMismatchError{
			Name:     info.Name,
			Found:    stored.Clone(),
			Expected: info.Shape.Clone(),
		}
	}
	return nil
}

// validateDType rejects the legacy uint16 encoding wherever it appears in
// a resolved spec, regardless of other fields.
func validateDType(info ParamInfo, spec arrayspec.Stored) error {
	if spec.DType == legacyUint16Name {
		return &UnsupportedDTypeError{Name: info.Name, DType: spec.DType}
	}
	if spec.Metadata != nil && spec.Metadata.DType == legacyUint16Encoding {
		return &UnsupportedDTypeError{Name: info.Name, DType: spec.Metadata.DType}
	}
	return nil
}
