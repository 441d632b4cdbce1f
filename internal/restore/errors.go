package restore

import (
	"fmt"

	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// ShapeMismatchError reports a checkpoint whose stored array shape does
// not match the shape the destination model expects. It names both shapes
// so operators can diagnose topology/checkpoint mismatches.
type ShapeMismatchError struct {
	Name     string
	Found    tensor.Shape // shape stored in the checkpoint
	Expected tensor.Shape // full target shape from the descriptor
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape of %q in checkpoint %v does not match expected %v", e.Name, e.Found, e.Expected)
}

// UnsupportedDTypeError reports a stored array using the legacy uint16
// encoding, which cannot be reinterpreted in place.
type UnsupportedDTypeError struct {
	Name  string
	DType string
}

// Error implements the error interface.
func (e *UnsupportedDTypeError) Error() string {
	return fmt.Sprintf("parameter %q uses unsupported legacy dtype %q: convert the checkpoint to bfloat16 offline before restoring", e.Name, e.DType)
}
