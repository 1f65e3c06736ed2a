package collector

import (
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/macropower/kfold/pkg/executor"
	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/project"
)

// Summary table columns.
const (
	ColumnMean = "mean"
	ColumnStd  = "std"
)

type importanceTable struct {
	features []string
	folds    []int
	// values[f][j] is the importance of feature f in folds[j], NaN when the
	// fold did not score it.
	values [][]float64
	mean   []float64
	std    []float64
}

// collectImportances reads every fold's importance table. It returns nil
// when no fold has one.
func (c *Collector) collectImportances() (*importanceTable, error) {
	t := &importanceTable{}
	index := map[string]int{}

	for i := 1; i <= c.k; i++ {
		path := c.layout.FoldImportances(i)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		f, err := frame.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", project.FoldName(i), err)
		}

		features, err := f.Column(executor.ColumnFeature)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		scores, err := f.Column(executor.ColumnImportance)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		if scores.Kind != frame.KindNumeric {
			return nil, fmt.Errorf("%s: %w: importance column must be numeric", path, frame.ErrShape)
		}

		col := len(t.folds)
		t.folds = append(t.folds, i)

		for row := range f.NumRows() {
			name := features.Cell(row)

			fi, ok := index[name]
			if !ok {
				fi = len(t.features)
				index[name] = fi
				t.features = append(t.features, name)
				t.values = append(t.values, nil)
			}

			for len(t.values[fi]) < col {
				t.values[fi] = append(t.values[fi], math.NaN())
			}

			t.values[fi] = append(t.values[fi], scores.Floats[row])
		}
	}

	if len(t.folds) == 0 {
		return nil, nil //nolint:nilnil // No tables is not an error.
	}

	for fi := range t.values {
		for len(t.values[fi]) < len(t.folds) {
			t.values[fi] = append(t.values[fi], math.NaN())
		}
	}

	t.summarize()

	return t, nil
}

// summarize computes each feature's mean and sample standard deviation over
// the folds that scored it, then orders features by descending mean.
func (t *importanceTable) summarize() {
	n := len(t.features)
	t.mean = make([]float64, n)
	t.std = make([]float64, n)

	for fi, values := range t.values {
		t.mean[fi], t.std[fi] = meanStd(values)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case t.mean[a] > t.mean[b]:
			return -1
		case t.mean[a] < t.mean[b]:
			return 1
		}

		return 0
	})

	features := make([]string, n)
	values := make([][]float64, n)
	mean := make([]float64, n)
	std := make([]float64, n)

	for i, fi := range order {
		features[i] = t.features[fi]
		values[i] = t.values[fi]
		mean[i] = t.mean[fi]
		std[i] = t.std[fi]
	}

	t.features, t.values, t.mean, t.std = features, values, mean, std
}

// meanStd ignores NaN values. The deviation is NaN with fewer than two
// values.
func meanStd(values []float64) (float64, float64) {
	var (
		sum   float64
		count int
	)

	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			count++
		}
	}

	if count == 0 {
		return math.NaN(), math.NaN()
	}

	mean := sum / float64(count)
	if count < 2 {
		return mean, math.NaN()
	}

	var ss float64
	for _, v := range values {
		if !math.IsNaN(v) {
			ss += (v - mean) * (v - mean)
		}
	}

	return mean, math.Sqrt(ss / float64(count-1))
}

func (t *importanceTable) frame() *frame.Frame {
	cols := []*frame.Column{
		frame.NewCategory(executor.ColumnFeature, t.features),
		frame.NewNumeric(ColumnMean, t.mean),
		frame.NewNumeric(ColumnStd, t.std),
	}

	for j, i := range t.folds {
		values := make([]float64, len(t.features))
		for fi := range t.features {
			values[fi] = t.values[fi][j]
		}

		cols = append(cols, frame.NewNumeric(project.FoldName(i), values))
	}

	return &frame.Frame{Columns: cols}
}
