package partitions

import (
	"fmt"
)

// Partition is a set of cells processed together by one worker
type Partition struct {
	ID int

	Cells       []int // Global cell indices, ascending
	NumCells    int   // Actual number of cells
	MaxElements int   // Largest partition size in the layout
}

// PartitionLayout is a complete decomposition of the mesh cells
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumCells) across partitions
	TotalCells    int
	NumPartitions int

	// Cell to partition mapping
	CToP []int // Length TotalCells: cell c belongs to partition CToP[c]
}

// GetPartition returns the partition containing cell, or -1 when out of range
func (pl *PartitionLayout) GetPartition(cell int) int {
	if cell < 0 || cell >= len(pl.CToP) {
		return -1
	}
	return pl.CToP[cell]
}

// ValidateLayout checks partition consistency: KpartMax matches the largest
// partition and every cell appears in exactly one partition
func (pl *PartitionLayout) ValidateLayout() error {
	actualMax := 0
	total := 0
	for _, p := range pl.Partitions {
		if p.NumCells != len(p.Cells) {
			return fmt.Errorf("partition %d: NumCells %d != len(Cells) %d",
				p.ID, p.NumCells, len(p.Cells))
		}
		if p.NumCells > actualMax {
			actualMax = p.NumCells
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		for _, c := range p.Cells {
			if pl.GetPartition(c) != p.ID {
				return fmt.Errorf("cell %d listed in partition %d but mapped to %d",
					c, p.ID, pl.GetPartition(c))
			}
		}
		total += p.NumCells
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalCells || len(pl.CToP) != pl.TotalCells {
		return fmt.Errorf("partitions hold %d cells, layout has %d", total, pl.TotalCells)
	}
	return nil
}

// PartitionedArray is data distributed across partitions in one contiguous
// buffer: [Partition 0 Data][Partition 1 Data]...
type PartitionedArray struct {
	GlobalData []float64
	Offsets    []int // Partition p's data is GlobalData[Offsets[p]:Offsets[p+1]]
	Stride     int   // Values per entry
}

// NewPartitionedArray allocates stride values per entry for each partition
func NewPartitionedArray(entries []int, stride int) *PartitionedArray {
	offsets := make([]int, len(entries)+1)
	for p, n := range entries {
		offsets[p+1] = offsets[p] + n*stride
	}
	return &PartitionedArray{
		GlobalData: make([]float64, offsets[len(entries)]),
		Offsets:    offsets,
		Stride:     stride,
	}
}

// GetPartitionData returns a slice for partition p's data
func (pa *PartitionedArray) GetPartitionData(partitionID int) []float64 {
	if partitionID < 0 || partitionID >= len(pa.Offsets)-1 {
		return nil
	}
	start := pa.Offsets[partitionID]
	end := pa.Offsets[partitionID+1]
	return pa.GlobalData[start:end:end]
}
