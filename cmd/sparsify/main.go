// Package main provides the sparsify checkpoint CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/checkpoint"
	"github.com/sparsify-ml/sparsify/internal/partition"
	"github.com/sparsify-ml/sparsify/internal/restore"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

const version = "v0.1.0"

type config struct {
	Worker     int    `env:"SPARSIFY_WORKER" envDefault:"0"`
	NumWorkers int    `env:"SPARSIFY_NUM_WORKERS" envDefault:"1"`
	MaxExperts int    `env:"SPARSIFY_MAX_EXPERTS" envDefault:"1024"`
	DType      string `env:"SPARSIFY_RESTORE_DTYPE"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "sparsify: %v\n", err)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("sparsify %s\n", version)
	case "inspect":
		err = runInspect(os.Args[2:])
	case "restore":
		err = runRestore(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sparsify: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "sparsify - dense-to-sparse checkpoint restoration")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  version                 Show version")
	fmt.Fprintln(os.Stderr, "  inspect <dir>           List the latest checkpoint's parameters")
	fmt.Fprintln(os.Stderr, "  restore [flags] <dir>   Restore the latest checkpoint into a sparse target")
}

func pickStep(m *checkpoint.Manager, step int64) (int64, error) {
	if step >= 0 {
		return step, nil
	}
	return m.LatestStep()
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	step := fs.Int64("step", -1, "checkpoint step (default latest)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sparsify inspect [flags] <dir>")
	}

	m := checkpoint.NewManager(fs.Arg(0), restore.NewReader())
	at, err := pickStep(m, *step)
	if err != nil {
		return err
	}
	entries, err := m.Entries(at)
	if err != nil {
		return err
	}

	fmt.Printf("checkpoint step %d: %d parameters\n", at, len(entries))
	for _, name := range sortedNames(entries) {
		switch v := entries[name].(type) {
		case arrayspec.Stored:
			fmt.Printf("  %-40s stored %v %s\n", name, tensor.Shape(v.Metadata.Shape), v.Metadata.DType)
		case arrayspec.Literal:
			fmt.Printf("  %-40s literal %v %s\n", name, v.Tensor.Shape(), v.Tensor.DType())
		default:
			fmt.Printf("  %-40s opaque\n", name)
		}
	}
	return nil
}

func runRestore(cfg config, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	experts := fs.Int("experts", 8, "expert count of the sparse target model")
	step := fs.Int64("step", -1, "checkpoint step (default latest)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sparsify restore [flags] <dir>")
	}
	if *experts <= 0 || *experts > cfg.MaxExperts {
		return fmt.Errorf("expert count %d out of range (1..%d)", *experts, cfg.MaxExperts)
	}

	var restoreDType *tensor.DataType
	if cfg.DType != "" {
		dt, ok := tensor.ParseDataType(cfg.DType)
		if !ok {
			return fmt.Errorf("unknown restore dtype %q", cfg.DType)
		}
		restoreDType = &dt
	}

	reader, err := restore.NewDenseToSparseReader(cfg.MaxExperts)
	if err != nil {
		return err
	}
	part, err := partition.NewEven(cfg.Worker, cfg.NumWorkers)
	if err != nil {
		return err
	}

	m := checkpoint.NewManager(fs.Arg(0), reader)
	at, err := pickStep(m, *step)
	if err != nil {
		return err
	}
	entries, err := m.Entries(at)
	if err != nil {
		return err
	}

	params, err := m.Restore(context.Background(), at, part, sparseTargetShapes(entries, *experts), restoreDType)
	if err != nil {
		return err
	}

	fmt.Printf("restored checkpoint step %d for worker %d/%d\n", at, cfg.Worker, cfg.NumWorkers)
	for _, name := range sortedNames(params) {
		if raw, ok := params[name].(*tensor.RawTensor); ok {
			fmt.Printf("  %-40s %v %s\n", name, raw.Shape(), raw.DType())
		} else {
			fmt.Printf("  %-40s %v\n", name, params[name])
		}
	}
	return nil
}

// sparseTargetShapes derives the sparse model's parameter shapes from a
// dense checkpoint: broadcast-eligible expert parameters gain a leading
// expert axis, other array parameters keep their stored shape. Expert
// optimizer slots are left unconstrained since their restored shape stays
// dense.
func sparseTargetShapes(entries map[string]arrayspec.Value, experts int) map[string]tensor.Shape {
	shapes := make(map[string]tensor.Shape, len(entries))
	for name, val := range entries {
		var stored tensor.Shape
		switch v := val.(type) {
		case arrayspec.Stored:
			stored = tensor.Shape(v.Metadata.Shape).Clone()
		case arrayspec.Literal:
			stored = v.Tensor.Shape().Clone()
		default:
			continue
		}
		info := restore.ParamInfo{Name: name}
		switch {
		case info.BroadcastEligible():
			shapes[name] = append(tensor.Shape{experts}, stored...)
		case info.IsExpertParam():
		default:
			shapes[name] = stored
		}
	}
	return shapes
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
