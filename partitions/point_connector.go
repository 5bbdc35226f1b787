package partitions

import (
	"fmt"
)

// PointConnector maps the mesh points touched by each partition's cells to
// partition-local numbering, so partitions can accumulate point sums
// privately and place them into global arrays afterwards
type PointConnector struct {
	NumPartitions int
	NumPoints     int

	// Partition mappings
	GlobalToLocalPoint []map[int]int // [partition][globalPoint] -> localPoint
	LocalToGlobalPoint [][]int       // [partition][localPoint] -> globalPoint

	// PickIndices[p] lists the local point of every touch made by partition
	// p, in cell traversal order
	PickIndices [][]int

	totalTouches int
}

// NewPointConnector visits the cells of every partition in order and
// records the points each touches. touches(cell) returns the touched points
// of a cell, repeated once per touch.
func NewPointConnector(layout *PartitionLayout, numPoints int, touches func(cell int) []int) (*PointConnector, error) {
	if layout == nil {
		return nil, fmt.Errorf("nil partition layout")
	}
	if numPoints < 0 {
		return nil, fmt.Errorf("invalid point count %d", numPoints)
	}
	pc := &PointConnector{
		NumPartitions:      layout.NumPartitions,
		NumPoints:          numPoints,
		GlobalToLocalPoint: make([]map[int]int, layout.NumPartitions),
		LocalToGlobalPoint: make([][]int, layout.NumPartitions),
		PickIndices:        make([][]int, layout.NumPartitions),
	}
	for p, part := range layout.Partitions {
		g2l := make(map[int]int)
		var l2g, picks []int
		for _, cell := range part.Cells {
			for _, pt := range touches(cell) {
				if pt < 0 || pt >= numPoints {
					return nil, fmt.Errorf("cell %d touches point %d outside [0,%d)",
						cell, pt, numPoints)
				}
				local, ok := g2l[pt]
				if !ok {
					local = len(l2g)
					g2l[pt] = local
					l2g = append(l2g, pt)
				}
				picks = append(picks, local)
			}
		}
		pc.GlobalToLocalPoint[p] = g2l
		pc.LocalToGlobalPoint[p] = l2g
		pc.PickIndices[p] = picks
		pc.totalTouches += len(picks)
	}
	return pc, nil
}

// LocalPointCounts returns the number of distinct points of each partition
func (pc *PointConnector) LocalPointCounts() []int {
	counts := make([]int, pc.NumPartitions)
	for p := range counts {
		counts[p] = len(pc.LocalToGlobalPoint[p])
	}
	return counts
}

// GetPlaceIndices returns the global point of each local point of partition p
func (pc *PointConnector) GetPlaceIndices(partition int) []int {
	if partition < 0 || partition >= pc.NumPartitions {
		return nil
	}
	return pc.LocalToGlobalPoint[partition]
}

// Place adds partition-local sums into global, partitions in order. Both
// arrays hold stride values per point.
func (pc *PointConnector) Place(local *PartitionedArray, global []float64) error {
	stride := local.Stride
	if len(global) != pc.NumPoints*stride {
		return fmt.Errorf("global array length %d, expected %d", len(global), pc.NumPoints*stride)
	}
	for p := 0; p < pc.NumPartitions; p++ {
		data := local.GetPartitionData(p)
		place := pc.GetPlaceIndices(p)
		if len(data) != len(place)*stride {
			return fmt.Errorf("partition %d holds %d values, expected %d",
				p, len(data), len(place)*stride)
		}
		for l, g := range place {
			for k := 0; k < stride; k++ {
				global[g*stride+k] += data[l*stride+k]
			}
		}
	}
	return nil
}

// Verify checks index validity and that the number of recorded touches
// equals expectedTouches
func (pc *PointConnector) Verify(expectedTouches int) error {
	for p := 0; p < pc.NumPartitions; p++ {
		nLocal := len(pc.LocalToGlobalPoint[p])
		if len(pc.GlobalToLocalPoint[p]) != nLocal {
			return fmt.Errorf("partition %d: %d global keys for %d local points",
				p, len(pc.GlobalToLocalPoint[p]), nLocal)
		}
		for l, g := range pc.LocalToGlobalPoint[p] {
			if pc.GlobalToLocalPoint[p][g] != l {
				return fmt.Errorf("partition %d: point %d maps to local %d, expected %d",
					p, g, pc.GlobalToLocalPoint[p][g], l)
			}
		}
		for _, idx := range pc.PickIndices[p] {
			if idx < 0 || idx >= nLocal {
				return fmt.Errorf("invalid pick index %d for partition %d (max %d)",
					idx, p, nLocal-1)
			}
		}
	}
	if pc.totalTouches != expectedTouches {
		return fmt.Errorf("conservation error: total touches %d != expected %d",
			pc.totalTouches, expectedTouches)
	}
	return nil
}
