package tensor

import "fmt"

// ToEnd marks a Range whose Stop extends to the end of the axis.
const ToEnd = -1

// Range selects the half-open interval [Start, Stop) along one axis.
// Stop == ToEnd selects everything from Start to the axis extent; when a
// range is applied to an axis, Stop values beyond the extent are clamped,
// mirroring the partitioner's slice semantics.
type Range struct {
	Start int
	Stop  int
}

// All returns a Range selecting a full axis.
func All() Range {
	return Range{Start: 0, Stop: ToEnd}
}

// NewRange returns a Range selecting [start, stop).
func NewRange(start, stop int) Range {
	return Range{Start: start, Stop: stop}
}

// IsAll reports whether the range selects a full axis regardless of extent.
func (r Range) IsAll() bool {
	return r.Start == 0 && r.Stop == ToEnd
}

// Resolve evaluates the range against an axis of the given extent, returning
// concrete [start, stop) bounds. Stop is clamped to the extent.
func (r Range) Resolve(extent int) (start, stop int, err error) {
	if extent < 0 {
		return 0, 0, fmt.Errorf("negative axis extent %d", extent)
	}
	start = r.Start
	stop = r.Stop
	if stop == ToEnd {
		stop = extent
	}
	if start < 0 {
		return 0, 0, fmt.Errorf("range start %d is negative", start)
	}
	if stop < start {
		return 0, 0, fmt.Errorf("range stop %d precedes start %d", stop, start)
	}
	if start > extent {
		start = extent
	}
	if stop > extent {
		stop = extent
	}
	return start, stop, nil
}

// Len returns the number of positions the range selects out of an axis of
// the given extent.
func (r Range) Len(extent int) (int, error) {
	start, stop, err := r.Resolve(extent)
	if err != nil {
		return 0, err
	}
	return stop - start, nil
}

// Slice is a per-axis selection of a tensor region. Axes beyond len(Slice)
// are selected in full.
type Slice []Range

// DropLeading returns the slice with its first range removed.
func (s Slice) DropLeading() Slice {
	if len(s) == 0 {
		return nil
	}
	out := make(Slice, len(s)-1)
	copy(out, s[1:])
	return out
}

// ResultShape computes the shape produced by applying the slice to a tensor
// of shape in. Fails if the slice has more components than in has axes.
func (s Slice) ResultShape(in Shape) (Shape, error) {
	if len(s) > len(in) {
		return nil, fmt.Errorf("slice has %d components but shape %v has %d axes", len(s), in, len(in))
	}
	out := in.Clone()
	for i, r := range s {
		n, err := r.Len(in[i])
		if err != nil {
			return nil, fmt.Errorf("axis %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// Bounds resolves every component of the slice against the shape, returning
// concrete per-axis [start, stop) pairs covering all axes of in.
func (s Slice) Bounds(in Shape) (starts, stops []int, err error) {
	if len(s) > len(in) {
		return nil, nil, fmt.Errorf("slice has %d components but shape %v has %d axes", len(s), in, len(in))
	}
	starts = make([]int, len(in))
	stops = make([]int, len(in))
	for i := range in {
		r := All()
		if i < len(s) {
			r = s[i]
		}
		starts[i], stops[i], err = r.Resolve(in[i])
		if err != nil {
			return nil, nil, fmt.Errorf("axis %d: %w", i, err)
		}
	}
	return starts, stops, nil
}
