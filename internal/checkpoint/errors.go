package checkpoint

import "errors"

var (
	// ErrNoCheckpoint is returned when a directory holds no checkpoints.
	ErrNoCheckpoint = errors.New("checkpoint: no checkpoints found")

	// ErrBadIndex is returned when a checkpoint index cannot be decoded.
	ErrBadIndex = errors.New("checkpoint: malformed index")
)
