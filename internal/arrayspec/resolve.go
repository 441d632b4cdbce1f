package arrayspec

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrMalformedSpec indicates a stored specification missing required
// metadata. This is a configuration error: the checkpoint index is not
// usable and the restore must abort.
var ErrMalformedSpec = errors.New("malformed array spec")

// Resolve rewrites a stored specification for reading from the checkpoint
// at ckptDir. Relative kvstore paths become absolute, and the write-time
// chunk shape and compressor are stripped so that a store opened for
// reading is not required to match the settings used at save time.
//
// Resolve is a pure transform; it never touches storage.
func Resolve(s Stored, ckptDir string) (Stored, error) {
	if s.Metadata == nil {
		return Stored{}, fmt.Errorf("%w: %q has no metadata", ErrMalformedSpec, s.KVStore.Path)
	}
	if s.Metadata.Shape == nil {
		return Stored{}, fmt.Errorf("%w: %q metadata has no shape", ErrMalformedSpec, s.KVStore.Path)
	}
	if s.Metadata.DType == "" {
		return Stored{}, fmt.Errorf("%w: %q metadata has no dtype", ErrMalformedSpec, s.KVStore.Path)
	}

	out := s.Clone()
	if !filepath.IsAbs(out.KVStore.Path) {
		out.KVStore.Path = filepath.Join(ckptDir, out.KVStore.Path)
	}
	out.Metadata.Chunks = nil
	out.Metadata.Compressor = nil
	return out, nil
}
