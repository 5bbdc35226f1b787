package partitions

import (
	"fmt"
	"math"
)

// PartitionBuilder groups mesh cells into partitions
type PartitionBuilder struct {
	NumCells            int
	TargetPartitionSize int // Desired cells per partition
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how cells are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive cells
	RoundRobin                              // Distribute cyclically
)

// ParseStrategy maps a strategy name, block or roundRobin, to its value
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch name {
	case "block":
		return BlockPartition, nil
	case "roundRobin":
		return RoundRobin, nil
	}
	return BlockPartition, fmt.Errorf("unknown partition strategy %q, valid strategies are: [block roundRobin]", name)
}

func (s PartitionStrategy) String() string {
	if s == RoundRobin {
		return "roundRobin"
	}
	return "block"
}

// NewCellLayout splits nCells into at most workers partitions of near equal
// size
func NewCellLayout(nCells, workers int, strategy PartitionStrategy) (*PartitionLayout, error) {
	if workers < 1 {
		workers = 1
	}
	size := int(math.Ceil(float64(nCells) / float64(workers)))
	if size < 1 {
		size = 1
	}
	pb := &PartitionBuilder{
		NumCells:            nCells,
		TargetPartitionSize: size,
		Strategy:            strategy,
	}
	return pb.BuildPartitions()
}

// BuildPartitions creates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumCells < 0 {
		return nil, fmt.Errorf("invalid cell count %d", pb.NumCells)
	}
	if pb.TargetPartitionSize < 1 {
		return nil, fmt.Errorf("invalid target partition size %d", pb.TargetPartitionSize)
	}
	numPartitions := pb.calculateNumPartitions()
	cToP := pb.partitionCells(numPartitions)
	partitions := pb.createPartitions(cToP, numPartitions)

	kpartMax := 0
	for _, p := range partitions {
		if p.NumCells > kpartMax {
			kpartMax = p.NumCells
		}
	}
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalCells:    pb.NumCells,
		NumPartitions: numPartitions,
		CToP:          cToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

func (pb *PartitionBuilder) calculateNumPartitions() int {
	numPartitions := int(math.Ceil(float64(pb.NumCells) / float64(pb.TargetPartitionSize)))
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

func (pb *PartitionBuilder) partitionCells(numPartitions int) []int {
	cToP := make([]int, pb.NumCells)
	switch pb.Strategy {
	case RoundRobin:
		for i := range cToP {
			cToP[i] = i % numPartitions
		}
	default:
		cellsPerPartition := int(math.Ceil(float64(pb.NumCells) / float64(numPartitions)))
		for i := range cToP {
			cToP[i] = i / cellsPerPartition
			if cToP[i] >= numPartitions {
				cToP[i] = numPartitions - 1
			}
		}
	}
	return cToP
}

func (pb *PartitionBuilder) createPartitions(cToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Cells: make([]int, 0)}
	}
	for cell, part := range cToP {
		partitions[part].Cells = append(partitions[part].Cells, cell)
		partitions[part].NumCells++
	}
	return partitions
}
