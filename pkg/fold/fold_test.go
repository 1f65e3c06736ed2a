package fold_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/pkg/fold"
	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/project"
)

func TestSplit_Invariants(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 3, 7, 10, 100, 101} {
		for _, k := range []int{2, 3, 5, 7, 10} {
			if k > n {
				continue
			}

			t.Run(fmt.Sprintf("n=%d,k=%d", n, k), func(t *testing.T) {
				t.Parallel()

				parts, err := fold.Split(n, k)
				require.NoError(t, err)
				require.Len(t, parts, k)

				seen := make([]int, n)
				minSize, maxSize := n, 0

				for i, p := range parts {
					assert.Equal(t, i+1, p.Fold)
					assert.Len(t, p.Train, n-len(p.Validation))

					inValidation := map[int]bool{}
					for _, row := range p.Validation {
						seen[row]++
						inValidation[row] = true
					}

					for _, row := range p.Train {
						assert.False(t, inValidation[row], "row %d in both sets of fold %d", row, p.Fold)
					}

					minSize = min(minSize, len(p.Validation))
					maxSize = max(maxSize, len(p.Validation))
				}

				for row, count := range seen {
					assert.Equal(t, 1, count, "row %d", row)
				}

				assert.LessOrEqual(t, maxSize-minSize, 1)
			})
		}
	}
}

func TestSplit_Blocks(t *testing.T) {
	t.Parallel()

	parts, err := fold.Split(7, 3)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, parts[0].Validation)
	assert.Equal(t, []int{3, 4}, parts[1].Validation)
	assert.Equal(t, []int{5, 6}, parts[2].Validation)
	assert.Equal(t, []int{0, 1, 2, 5, 6}, parts[1].Train)
}

func TestSplit_Errors(t *testing.T) {
	t.Parallel()

	_, err := fold.Split(10, 1)
	require.ErrorIs(t, err, fold.ErrPartition)

	_, err = fold.Split(3, 4)
	require.ErrorIs(t, err, fold.ErrPartition)
}

func syntheticFrame(t *testing.T, n int) *frame.Frame {
	t.Helper()

	x := make([]float64, n)
	y := make([]float64, n)
	for i := range n {
		x[i] = float64(i)
		y[i] = float64(2 * i)
	}

	f, err := frame.New(frame.NewNumeric("x", x), frame.NewNumeric("y", y))
	require.NoError(t, err)

	return f
}

func TestPartitioner_Partition(t *testing.T) {
	t.Parallel()

	l := project.NewLayout(t.TempDir(), "EXP")
	p := fold.NewPartitioner(l, 5, "y", fold.WithWorkers(2))

	parts, err := p.Partition(t.Context(), syntheticFrame(t, 100))
	require.NoError(t, err)
	require.Len(t, parts, 5)

	folds, err := l.FoldDirs()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, folds)

	vin, err := frame.ReadFile(l.Partition(3, project.ValidationInput))
	require.NoError(t, err)
	assert.Equal(t, 20, vin.NumRows())
	assert.Equal(t, []string{"x"}, vin.Names())

	tin, err := frame.ReadFile(l.Partition(3, project.TrainInput))
	require.NoError(t, err)
	assert.Equal(t, 80, tin.NumRows())

	vx, err := vin.Column("x")
	require.NoError(t, err)
	tx, err := tin.Column("x")
	require.NoError(t, err)

	for _, v := range vx.Floats {
		assert.NotContains(t, tx.Floats, v)
	}

	vout, err := frame.ReadFile(l.Partition(3, project.ValidationOutput))
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, vout.Names())
	assert.Equal(t, frame.KindNumeric, vout.Columns[0].Kind)
	assert.InDelta(t, 80.0, vout.Columns[0].Floats[0], 0)
}

func TestPartitioner_MissingTarget(t *testing.T) {
	t.Parallel()

	l := project.NewLayout(t.TempDir(), "EXP")
	p := fold.NewPartitioner(l, 2, "nope")

	_, err := p.Partition(t.Context(), syntheticFrame(t, 10))
	require.ErrorIs(t, err, fold.ErrPartition)
	require.ErrorIs(t, err, frame.ErrColumnNotFound)
}

func TestPartitioner_WriteFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := project.NewLayout(root, "EXP")

	// A regular file where a fold directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(root, "fold2"), nil, 0o644))

	p := fold.NewPartitioner(l, 3, "y")
	_, err := p.Partition(t.Context(), syntheticFrame(t, 9))
	require.ErrorIs(t, err, fold.ErrPartition)
}

func TestLoadDataset(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.csv")
	data := strings.Join([]string{"a,b,y", "1,2,3", "NA,2,3", "4,5,6", ""}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	f, err := fold.LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.NumRows())

	_, err = fold.LoadDataset(filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, fold.ErrPartition)
}
