// Package fold splits a dataset into K-fold cross-validation partitions and
// persists them to per-fold directories.
package fold

import (
	"errors"
	"fmt"
)

// ErrPartition is returned when a dataset cannot be partitioned.
var ErrPartition = errors.New("partition")

// Partition holds the row indices of one fold.
type Partition struct {
	Train      []int
	Validation []int
	Fold       int
}

// Split computes a non-shuffled K-fold split over n rows. Validation sets
// are contiguous blocks in row order; the first n%k blocks hold one extra
// row. Each train set is the complement of its validation set.
func Split(n, k int) ([]Partition, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: k=%d must be at least 2", ErrPartition, k)
	}

	if k > n {
		return nil, fmt.Errorf("%w: cannot split %d rows into %d folds", ErrPartition, n, k)
	}

	parts := make([]Partition, k)
	start := 0

	for i := range k {
		size := n / k
		if i < n%k {
			size++
		}

		end := start + size

		p := Partition{
			Fold:       i + 1,
			Validation: make([]int, 0, size),
			Train:      make([]int, 0, n-size),
		}

		for row := range n {
			if row >= start && row < end {
				p.Validation = append(p.Validation, row)
			} else {
				p.Train = append(p.Train, row)
			}
		}

		parts[i] = p
		start = end
	}

	return parts, nil
}
