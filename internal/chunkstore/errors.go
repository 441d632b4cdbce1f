package chunkstore

import "errors"

// Common errors.
var (
	ErrNotAnArray       = errors.New("not a chunked array: missing .zarray metadata")
	ErrBadMetadata      = errors.New("invalid array metadata")
	ErrUnsupportedDType = errors.New("unsupported dtype encoding")
	ErrSpecMismatch     = errors.New("spec does not match stored array")
	ErrCorruptChunk     = errors.New("corrupt chunk")
)
