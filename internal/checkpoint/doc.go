// Package checkpoint manages on-disk model checkpoints: a step-numbered
// directory per checkpoint holding one chunked array per parameter and a
// JSON index mapping parameter names to their array specs.
//
// Restoring is strategy-driven. The manager walks the index and hands
// every entry to an injected ParamReader, which decides how the stored
// bytes map onto the worker's region of the target parameter. Swapping
// the reader switches between a plain restore and a dense-to-sparse
// restore without touching the manager.
package checkpoint
