// Package restore implements dense-to-sparse checkpoint restoration: it
// reads model parameters from a chunked array store and reconstructs them
// for a Mixture-of-Experts topology that differs structurally from the
// dense topology that produced the checkpoint.
//
// A dense checkpoint stores one feed-forward block per layer. When the
// destination model is sparse, every expert feed-forward parameter is
// restored by reading the dense block and replicating it across the
// experts the worker owns (the expert axis is absent on disk):
//
//	stored (512, 2048) --broadcast--> worker shard (k, 512, 2048)
//
// Optimizer slot state (names ending in /m or /v) for expert parameters is
// never broadcast: freshly introduced experts have no dense optimizer
// state worth replicating, so slots keep their dense stored form.
//
// Reads are deferred: the Reader builds a LazyArray per parameter, and the
// caller drives many of them concurrently so the store can overlap I/O.
package restore
