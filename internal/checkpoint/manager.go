package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sparsify-ml/sparsify/internal/arrayspec"
	"github.com/sparsify-ml/sparsify/internal/chunkstore"
	"github.com/sparsify-ml/sparsify/internal/partition"
	"github.com/sparsify-ml/sparsify/internal/restore"
	"github.com/sparsify-ml/sparsify/internal/tensor"
)

// ParamReader builds a deferred read for one checkpoint entry. The
// concrete reader decides how stored bytes map onto the worker's region
// of the target parameter.
type ParamReader interface {
	BuildLazyArray(info restore.ParamInfo, val arrayspec.Value, ckptDir string, restoreDType *tensor.DataType) *restore.LazyArray
}

// Manager reads and writes step-numbered checkpoints under a base
// directory.
type Manager struct {
	dir        string
	reader     ParamReader
	compressor string
}

// NewManager returns a manager rooted at dir that restores through reader.
func NewManager(dir string, reader ParamReader) *Manager {
	return &Manager{dir: dir, reader: reader, compressor: chunkstore.CompressorGzip}
}

// WithCompressor returns a copy of the manager using the given chunk
// compressor for saves ("" disables compression).
func (m *Manager) WithCompressor(compressor string) *Manager {
	out := *m
	out.compressor = compressor
	return &out
}

// Dir returns the base checkpoint directory.
func (m *Manager) Dir() string { return m.dir }

// StepDir returns the directory holding the given checkpoint step.
func (m *Manager) StepDir(step int64) string {
	return filepath.Join(m.dir, stepDirName(step))
}

type index struct {
	Version int                        `json:"version"`
	Entries map[string]json.RawMessage `json:"entries"`
}

const indexVersion = 1

// Save writes one checkpoint for step. Literal tensors are persisted as
// chunked arrays and indexed by spec with checkpoint-relative paths;
// scalars and opaque values are stored inline in the index. Already
// stored specs are indexed as given. The checkpoint directory appears
// atomically: arrays are staged in a temporary directory that is renamed
// into place after the index is written.
func (m *Manager) Save(step int64, params map[string]arrayspec.Value) error {
	final := m.StepDir(step)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("checkpoint step %d already exists at %s", step, final)
	}
	staging := final + ".tmp"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	var (
		mu      sync.Mutex
		entries = make(map[string]json.RawMessage, len(params))
	)
	record := func(name string, val arrayspec.Value) error {
		data, err := arrayspec.Marshal(val)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
		mu.Lock()
		entries[name] = data
		mu.Unlock()
		return nil
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for name, val := range params {
		lit, ok := val.(arrayspec.Literal)
		if !ok || lit.Tensor == nil || len(lit.Tensor.Shape()) == 0 {
			if err := record(name, val); err != nil {
				return err
			}
			continue
		}
		g.Go(func() error {
			rel := paramDirName(name)
			spec, err := chunkstore.Write(filepath.Join(staging, rel), lit.Tensor, chunkstore.WriteOptions{
				Compressor: m.compressor,
			})
			if err != nil {
				return fmt.Errorf("parameter %q: %w", name, err)
			}
			spec.KVStore.Path = rel
			return record(name, spec)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(index{Version: indexVersion, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, IndexFile), data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Entries reads the index of the given step and decodes every entry.
func (m *Manager) Entries(step int64) (map[string]arrayspec.Value, error) {
	data, err := os.ReadFile(filepath.Join(m.StepDir(step), IndexFile))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadIndex, err)
	}
	if idx.Entries == nil {
		return nil, fmt.Errorf("%w: missing entries", ErrBadIndex)
	}
	out := make(map[string]arrayspec.Value, len(idx.Entries))
	for name, raw := range idx.Entries {
		val, err := arrayspec.Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", ErrBadIndex, name, err)
		}
		out[name] = val
	}
	return out, nil
}

// Lazy builds a deferred restore handle for every indexed parameter
// without reading any array data. targetShapes supplies per-parameter
// destination shapes used for validation and broadcast sizing; missing
// names skip shape validation. part may be nil to materialize whole
// arrays on this worker.
func (m *Manager) Lazy(step int64, part partition.Partitioner, targetShapes map[string]tensor.Shape, restoreDType *tensor.DataType) (map[string]*restore.LazyArray, error) {
	entries, err := m.Entries(step)
	if err != nil {
		return nil, err
	}
	ckptDir := m.StepDir(step)
	out := make(map[string]*restore.LazyArray, len(entries))
	for name, val := range entries {
		info := restore.ParamInfo{Name: name, Shape: targetShapes[name]}
		if part != nil {
			info.LocalChunk = part.LocalChunk(name, info.Shape)
			info.Mesh, info.Axes = part.Layout(name, info.Shape)
		}
		out[name] = m.reader.BuildLazyArray(info, val, ckptDir, restoreDType)
	}
	return out, nil
}

// Restore materializes every parameter of the given step, reading arrays
// concurrently. The first parameter error aborts the restore.
func (m *Manager) Restore(ctx context.Context, step int64, part partition.Partitioner, targetShapes map[string]tensor.Shape, restoreDType *tensor.DataType) (map[string]any, error) {
	lazy, err := m.Lazy(step, part, targetShapes, restoreDType)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out = make(map[string]any, len(lazy))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for name, arr := range lazy {
		g.Go(func() error {
			v, err := arr.Get(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Steps lists the checkpoint steps present under the base directory in
// ascending order.
func (m *Manager) Steps() ([]int64, error) {
	dirents, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	var steps []int64
	for _, de := range dirents {
		if !de.IsDir() {
			continue
		}
		if step, ok := parseStepDir(de.Name()); ok {
			steps = append(steps, step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	return steps, nil
}

// LatestStep returns the newest checkpoint step, or ErrNoCheckpoint.
func (m *Manager) LatestStep() (int64, error) {
	steps, err := m.Steps()
	if err != nil {
		return 0, err
	}
	if len(steps) == 0 {
		return 0, ErrNoCheckpoint
	}
	return steps[len(steps)-1], nil
}

// RemoveOld deletes the oldest checkpoints so that at most keep remain.
func (m *Manager) RemoveOld(keep int) error {
	if keep < 0 {
		return fmt.Errorf("keep %d must be non-negative", keep)
	}
	steps, err := m.Steps()
	if err != nil {
		return err
	}
	if len(steps) <= keep {
		return nil
	}
	for _, step := range steps[:len(steps)-keep] {
		if err := os.RemoveAll(m.StepDir(step)); err != nil {
			return fmt.Errorf("remove checkpoint %d: %w", step, err)
		}
	}
	return nil
}
