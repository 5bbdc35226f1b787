package field

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when two region layouts that must match differ
// in region count or in the size of any region.
var ErrShapeMismatch = errors.New("region layout mismatch")

// RegionStore holds one buffer of values per region.
// All regions share one contiguous allocation:
//
//	[Region 0 Data][Region 1 Data]...[Region N-1 Data]
//
// Region i occupies data[offsets[i]:offsets[i+1]]. The number of regions and
// their sizes are fixed at construction; the values are mutable.
type RegionStore[T Value[T]] struct {
	data    []T
	offsets []int
}

// NewRegionStore allocates zero-initialised buffers, one per entry of sizes
func NewRegionStore[T Value[T]](sizes []int) (*RegionStore[T], error) {
	offsets := make([]int, len(sizes)+1)
	for i, n := range sizes {
		if n < 0 {
			return nil, fmt.Errorf("region %d: invalid size %d", i, n)
		}
		offsets[i+1] = offsets[i] + n
	}
	return &RegionStore[T]{
		data:    make([]T, offsets[len(sizes)]),
		offsets: offsets,
	}, nil
}

func (rs *RegionStore[T]) NumRegions() int { return len(rs.offsets) - 1 }

// Size returns the number of elements in region i
func (rs *RegionStore[T]) Size(i int) int { return rs.offsets[i+1] - rs.offsets[i] }

// Sizes returns a copy of the per-region element counts
func (rs *RegionStore[T]) Sizes() []int {
	sizes := make([]int, rs.NumRegions())
	for i := range sizes {
		sizes[i] = rs.Size(i)
	}
	return sizes
}

// Len is the total element count over all regions
func (rs *RegionStore[T]) Len() int { return len(rs.data) }

// Region returns a view of region i's buffer; writes go to the store
func (rs *RegionStore[T]) Region(i int) []T {
	return rs.data[rs.offsets[i]:rs.offsets[i+1]:rs.offsets[i+1]]
}

// Data returns a view of all regions laid out contiguously
func (rs *RegionStore[T]) Data() []T { return rs.data }

func (rs *RegionStore[T]) At(region, idx int) T {
	return rs.Region(region)[idx]
}

func (rs *RegionStore[T]) Set(region, idx int, v T) {
	rs.Region(region)[idx] = v
}

// AddTo accumulates v into element idx of region
func (rs *RegionStore[T]) AddTo(region, idx int, v T) {
	r := rs.Region(region)
	r[idx] = r[idx].Add(v)
}

// Fill sets every element of every region to v
func (rs *RegionStore[T]) Fill(v T) {
	for i := range rs.data {
		rs.data[i] = v
	}
}

// Scale multiplies every element by f in place
func (rs *RegionStore[T]) Scale(f float64) {
	for i := range rs.data {
		rs.data[i] = rs.data[i].Scale(f)
	}
}

// Clone returns a deep copy of the store
func (rs *RegionStore[T]) Clone() *RegionStore[T] {
	c := &RegionStore[T]{
		data:    make([]T, len(rs.data)),
		offsets: make([]int, len(rs.offsets)),
	}
	copy(c.data, rs.data)
	copy(c.offsets, rs.offsets)
	return c
}

// DivideFloored divides every element by the matching element of weight,
// flooring each divisor at eps. It returns the number of divisors that were
// floored. The layouts must match exactly; on mismatch nothing is modified.
func (rs *RegionStore[T]) DivideFloored(weight *RegionStore[Scalar], eps float64) (floored int, err error) {
	if !SameLayout(rs.Sizes(), weight.Sizes()) {
		return 0, fmt.Errorf("%w: values %v, weight %v", ErrShapeMismatch, rs.Sizes(), weight.Sizes())
	}
	for i, w := range weight.data {
		d := float64(w)
		if d < eps {
			d = eps
			floored++
		}
		rs.data[i] = rs.data[i].Scale(1 / d)
	}
	return floored, nil
}

// SameLayout reports whether two region size lists describe the same layout
func SameLayout(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
