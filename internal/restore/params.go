package restore

import (
	"strings"

	"github.com/sparsify-ml/sparsify/internal/partition"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// ParamInfo is the static per-parameter restore descriptor: the name, the
// full (unpartitioned) shape the destination model expects, and the region
// this worker owns. Immutable once constructed; one instance per named
// parameter per restore call.
type ParamInfo struct {
	// Name is the parameter's tree path, e.g. "target/layer0/expert/wi".
	Name string

	// Shape is the full target shape, including the leading expert axis
	// for expert parameters. Nil skips shape validation.
	Shape tensor.Shape

	// LocalChunk is the region this worker materializes. Nil means the
	// whole array.
	LocalChunk *partition.LocalChunk

	// Mesh and Axes, when both set, request full-array distributed
	// materialization instead of host-local slicing.
	Mesh *partition.Mesh
	Axes partition.AxisLayout
}

// IsExpertParam reports whether the parameter belongs to an expert
// feed-forward block.
func (p ParamInfo) IsExpertParam() bool {
	return strings.Contains(p.Name, "expert/")
}

// IsOptimizerSlot reports whether the parameter is optimizer slot state
// (first or second moment).
func (p ParamInfo) IsOptimizerSlot() bool {
	return strings.HasSuffix(p.Name, "/m") || strings.HasSuffix(p.Name, "/v")
}

// BroadcastEligible reports whether dense-to-sparse restoration broadcasts
// this parameter. Expert parameters are broadcast; their optimizer slots
// are not (slot state for new experts is restored by slicing, not by
// replicating dense state).
func (p ParamInfo) BroadcastEligible() bool {
	return p.IsExpertParam() && !p.IsOptimizerSlot()
}
