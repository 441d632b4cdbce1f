// Package partition defines the distributed-partitioner collaborator: the
// types describing which region of each parameter a worker owns, and a
// simple contiguous axis-0 partitioner for single-host topologies.
package partition

import (
	"fmt"

	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// LocalChunk describes the region of one parameter a worker materializes.
// A nil LocalChunk means the worker materializes the whole array.
type LocalChunk struct {
	// Slice selects the worker's region of the parameter's full target
	// shape. For expert parameters the leading component indexes the
	// expert axis.
	Slice tensor.Slice
}

// Mesh describes the device mesh used for full-array distributed
// materialization.
type Mesh struct {
	Name  string
	Shape []int
}

// AxisLayout maps a parameter's axes onto mesh axes. Empty names mean the
// axis is replicated.
type AxisLayout []string

// Partitioner computes per-parameter ownership. Implementations must be
// deterministic: the same name and shape always yield the same chunk.
type Partitioner interface {
	// LocalChunk returns the region of the named parameter this worker
	// owns, or nil when the worker should materialize the whole array.
	LocalChunk(name string, shape tensor.Shape) *LocalChunk

	// Layout returns the mesh and axis layout for full-array distributed
	// materialization, or nil when host-local slicing applies.
	Layout(name string, shape tensor.Shape) (*Mesh, AxisLayout)
}

// Even shards every parameter contiguously along axis 0 across NumWorkers
// workers, assigning the remainder to the leading workers.
type Even struct {
	Worker     int
	NumWorkers int
}

// NewEven returns an Even partitioner for worker (0-based) of numWorkers.
func NewEven(worker, numWorkers int) (*Even, error) {
	if numWorkers <= 0 {
		return nil, fmt.Errorf("num workers %d must be positive", numWorkers)
	}
	if worker < 0 || worker >= numWorkers {
		return nil, fmt.Errorf("worker %d out of range [0, %d)", worker, numWorkers)
	}
	return &Even{Worker: worker, NumWorkers: numWorkers}, nil
}

// LocalChunk implements Partitioner.
func (p *Even) LocalChunk(name string, shape tensor.Shape) *LocalChunk {
	if len(shape) == 0 {
		return nil
	}
	n := shape[0]
	base := n / p.NumWorkers
	rem := n % p.NumWorkers

	start := p.Worker*base + min(p.Worker, rem)
	size := base
	if p.Worker < rem {
		size++
	}
	sel := make(tensor.Slice, 1, len(shape))
	sel[0] = tensor.NewRange(start, start+size)
	for i := 1; i < len(shape); i++ {
		sel = append(sel, tensor.All())
	}
	return &LocalChunk{Slice: sel}
}

// Layout implements Partitioner. Even always uses host-local slicing.
func (p *Even) Layout(name string, shape tensor.Shape) (*Mesh, AxisLayout) {
	return nil, nil
}
