// Package arrayspec defines how checkpoint entries are described: a closed
// variant of stored chunked-array specifications, in-memory literals, and
// opaque pass-through values, plus the resolver that rewrites stored
// specifications against a checkpoint location.
package arrayspec

import (
	"encoding/json"
	"fmt"

	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// Value is one checkpoint entry. The variant is closed: Stored, Literal,
// and Opaque are the only implementations.
type Value interface {
	isValue()
}

// Stored describes a chunked array persisted in the array store.
// The layout mirrors the store's access specification: a driver name, a
// key-value store location, optional storage metadata, and an optional
// cast dtype applied on read.
type Stored struct {
	Driver   string    `json:"driver"`
	KVStore  KVStore   `json:"kvstore"`
	DType    string    `json:"dtype,omitempty"` // optional top-level cast dtype name
	Metadata *Metadata `json:"metadata,omitempty"`
}

// KVStore locates the array's backing directory.
type KVStore struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
}

// Metadata is the array's storage metadata. Shape and DType describe the
// on-disk array; Chunks and Compressor record how it was written and are
// stripped by Resolve so that reads do not depend on write-time settings.
type Metadata struct {
	Shape      []int       `json:"shape"`
	DType      string      `json:"dtype"` // numpy-style encoding, e.g. "<f4"
	Chunks     []int       `json:"chunks,omitempty"`
	Compressor *Compressor `json:"compressor,omitempty"`
}

// Compressor identifies the chunk compression codec.
type Compressor struct {
	ID string `json:"id"`
}

// Literal wraps an array already materialized in memory.
type Literal struct {
	Tensor *tensor.RawTensor
}

// Opaque wraps any non-array checkpoint entry (scalars, step counters,
// sentinels). The engine returns these unchanged.
type Opaque struct {
	Value any
}

func (Stored) isValue()  {}
func (Literal) isValue() {}
func (Opaque) isValue()  {}

// Clone returns a deep copy of the stored specification.
func (s Stored) Clone() Stored {
	out := s
	if s.Metadata != nil {
		md := *s.Metadata
		if s.Metadata.Shape != nil {
			md.Shape = append([]int(nil), s.Metadata.Shape...)
		}
		if s.Metadata.Chunks != nil {
			md.Chunks = append([]int(nil), s.Metadata.Chunks...)
		}
		if s.Metadata.Compressor != nil {
			c := *s.Metadata.Compressor
			md.Compressor = &c
		}
		out.Metadata = &md
	}
	return out
}

// envelope is the tagged JSON encoding of a Value, used by checkpoint
// index files.
type envelope struct {
	Kind string `json:"kind"`

	Spec *Stored `json:"spec,omitempty"`

	DType string `json:"dtype,omitempty"`
	Shape []int  `json:"shape,omitempty"`
	Data  []byte `json:"data,omitempty"`

	Value json.RawMessage `json:"value,omitempty"`
}

// Marshal encodes a Value for storage in a checkpoint index.
func Marshal(v Value) ([]byte, error) {
	switch v := v.(type) {
	case Stored:
		return json.Marshal(envelope{Kind: "stored", Spec: &v})
	case Literal:
		if v.Tensor == nil {
			return nil, fmt.Errorf("literal entry has no tensor")
		}
		return json.Marshal(envelope{
			Kind:  "literal",
			DType: v.Tensor.DType().String(),
			Shape: v.Tensor.Shape(),
			Data:  v.Tensor.Data(),
		})
	case Opaque:
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("encode opaque entry: %w", err)
		}
		return json.Marshal(envelope{Kind: "opaque", Value: raw})
	default:
		return nil, fmt.Errorf("unknown value variant %T", v)
	}
}

// Unmarshal decodes a Value written by Marshal.
func Unmarshal(data []byte) (Value, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	switch env.Kind {
	case "stored":
		if env.Spec == nil {
			return nil, fmt.Errorf("stored entry has no spec")
		}
		return *env.Spec, nil
	case "literal":
		dt, ok := tensor.ParseDataType(env.DType)
		if !ok {
			return nil, fmt.Errorf("literal entry has unknown dtype %q", env.DType)
		}
		raw, err := tensor.NewRawFromBytes(tensor.Shape(env.Shape), dt, env.Data)
		if err != nil {
			return nil, fmt.Errorf("literal entry: %w", err)
		}
		return Literal{Tensor: raw}, nil
	case "opaque":
		var val any
		if err := json.Unmarshal(env.Value, &val); err != nil {
			return nil, fmt.Errorf("decode opaque entry: %w", err)
		}
		return Opaque{Value: val}, nil
	default:
		return nil, fmt.Errorf("unknown entry kind %q", env.Kind)
	}
}
