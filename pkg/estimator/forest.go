package estimator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/metric"
)

const TypeStumpForest = "stump-forest"

const (
	defaultTrees      = 50
	defaultThresholds = 32
)

// StumpForest is a bagged ensemble of depth-one decision trees. Numeric
// outputs are regressed with leaf means; other kinds are classified with
// leaf majorities. Only numeric input columns are split on.
//
// Members are fitted concurrently, bounded by the worker count. A worker
// count below 1 uses every core.
type StumpForest struct {
	features   []string
	members    []stump
	importance []float64
	outKind    frame.Kind
	outName    string
	oob        float64
	trees      int
	workers    int
	seed       uint64
	hasOOB     bool
	fitted     bool
}

type stump struct {
	left, right leaf
	importance  []float64
	inBag       []bool
	feature     int // -1 for a constant stump
	threshold   float64
}

type leaf struct {
	label string
	value float64
}

func newStumpForest(params Params) (Unit, error) {
	if err := params.Check("trees", "seed", "workers"); err != nil {
		return nil, err
	}

	trees, err := params.Int("trees", defaultTrees)
	if err != nil {
		return nil, err
	}

	if trees < 1 {
		return nil, fmt.Errorf("trees must be at least 1, got %d", trees)
	}

	seed, err := params.Int("seed", 1)
	if err != nil {
		return nil, err
	}

	workers, err := params.Int("workers", 1)
	if err != nil {
		return nil, err
	}

	return &StumpForest{trees: trees, seed: uint64(seed), workers: workers}, nil //nolint:gosec // Seed bits only.
}

func (f *StumpForest) Workers() int     { return f.workers }
func (f *StumpForest) SetWorkers(n int) { f.workers = n }

func (f *StumpForest) classify() bool { return f.outKind != frame.KindNumeric }

func (f *StumpForest) Fit(x *frame.Frame, y *frame.Column) error {
	n := y.Len()
	if n == 0 {
		return fmt.Errorf("stump-forest: empty output")
	}

	if x.NumRows() != n {
		return fmt.Errorf("%w: %d input rows, %d output rows", frame.ErrShape, x.NumRows(), n)
	}

	f.outKind = y.Kind
	f.outName = y.Name
	f.features = x.Names()
	f.members = make([]stump, f.trees)

	workers := f.workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)

	for m := range f.trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			//nolint:gosec // Deterministic bootstrap sampling, not security.
			rng := rand.New(rand.NewPCG(f.seed, uint64(m)))
			f.members[m] = f.fitMember(rng, x, y)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("fit members: %w", err)
	}

	f.importance = make([]float64, len(f.features))
	for _, s := range f.members {
		for j, v := range s.importance {
			f.importance[j] += v
		}
	}

	for j := range f.importance {
		f.importance[j] /= float64(len(f.members))
	}

	f.oob, f.hasOOB = f.scoreOOB(x, y)
	f.fitted = true

	return nil
}

func (f *StumpForest) fitMember(rng *rand.Rand, x *frame.Frame, y *frame.Column) stump {
	n := y.Len()

	sample := make([]int, n)
	inBag := make([]bool, n)
	for i := range sample {
		sample[i] = rng.IntN(n)
		inBag[sample[i]] = true
	}

	s := stump{
		feature:    -1,
		inBag:      inBag,
		importance: make([]float64, len(x.Columns)),
	}
	s.left = f.leafOf(y, sample)
	s.right = s.left

	parent := f.impurity(y, sample)
	bestGain := 0.0

	for j, c := range x.Columns {
		if c.Kind != frame.KindNumeric {
			continue
		}

		for _, th := range candidateThresholds(c.Floats, sample) {
			var left, right []int
			for _, i := range sample {
				if c.Floats[i] <= th {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}

			if len(left) == 0 || len(right) == 0 {
				continue
			}

			wl := float64(len(left)) / float64(len(sample))
			gain := parent - wl*f.impurity(y, left) - (1-wl)*f.impurity(y, right)

			if gain > bestGain {
				bestGain = gain
				s.feature = j
				s.threshold = th
				s.left = f.leafOf(y, left)
				s.right = f.leafOf(y, right)
			}
		}
	}

	if s.feature >= 0 {
		s.importance[s.feature] = 1
	}

	return s
}

// candidateThresholds returns up to defaultThresholds midpoints between the
// distinct sampled values of a column.
func candidateThresholds(values []float64, sample []int) []float64 {
	distinct := make([]float64, 0, len(sample))
	for _, i := range sample {
		distinct = append(distinct, values[i])
	}

	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	if len(distinct) < 2 {
		return nil
	}

	mids := make([]float64, len(distinct)-1)
	for i := range mids {
		mids[i] = (distinct[i] + distinct[i+1]) / 2
	}

	if len(mids) <= defaultThresholds {
		return mids
	}

	out := make([]float64, defaultThresholds)
	for i := range out {
		out[i] = mids[i*len(mids)/defaultThresholds]
	}

	return out
}

func (f *StumpForest) leafOf(y *frame.Column, idx []int) leaf {
	if f.classify() {
		return leaf{label: mode(y, idx)}
	}

	var sum float64
	for _, i := range idx {
		sum += y.Floats[i]
	}

	return leaf{value: sum / float64(len(idx))}
}

// impurity is the variance of a numeric output or the Gini impurity of a
// categorical one.
func (f *StumpForest) impurity(y *frame.Column, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}

	n := float64(len(idx))

	if f.classify() {
		counts := map[string]int{}
		for _, i := range idx {
			counts[y.Cell(i)]++
		}

		g := 1.0
		for _, c := range counts {
			p := float64(c) / n
			g -= p * p
		}

		return g
	}

	var mean float64
	for _, i := range idx {
		mean += y.Floats[i]
	}
	mean /= n

	var v float64
	for _, i := range idx {
		v += (y.Floats[i] - mean) * (y.Floats[i] - mean)
	}

	return v / n
}

func (s stump) route(row int, cols []*frame.Column) leaf {
	if s.feature < 0 {
		return s.left
	}

	if cols[s.feature].Floats[row] <= s.threshold {
		return s.left
	}

	return s.right
}

// scoreOOB aggregates, for every row, the predictions of the members that
// did not sample it. Regression is scored with R², classification with
// accuracy.
func (f *StumpForest) scoreOOB(x *frame.Frame, y *frame.Column) (float64, bool) {
	var truth, pred []float64

	correct, total := 0, 0

	for i := range y.Len() {
		var (
			sum   float64
			votes = map[string]int{}
			count int
		)

		for _, s := range f.members {
			if s.inBag[i] {
				continue
			}

			l := s.route(i, x.Columns)
			sum += l.value
			votes[l.label]++
			count++
		}

		if count == 0 {
			continue
		}

		if f.classify() {
			total++
			if majorityVote(votes) == y.Cell(i) {
				correct++
			}

			continue
		}

		truth = append(truth, y.Floats[i])
		pred = append(pred, sum/float64(count))
	}

	if f.classify() {
		if total == 0 {
			return 0, false
		}

		return float64(correct) / float64(total), true
	}

	if len(truth) == 0 {
		return 0, false
	}

	return metric.R2Score(truth, pred), true
}

func majorityVote(votes map[string]int) string {
	keys := make([]string, 0, len(votes))
	for k := range votes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	best, bestN := "", -1
	for _, k := range keys {
		if votes[k] > bestN {
			best, bestN = k, votes[k]
		}
	}

	return best
}

func (f *StumpForest) Predict(x *frame.Frame) (*frame.Column, error) {
	if !f.fitted {
		return nil, ErrNotFitted
	}

	cols := make([]*frame.Column, len(f.features))
	for j, name := range f.features {
		c, err := x.Column(name)
		if err != nil {
			return nil, fmt.Errorf("stump-forest: %w", err)
		}

		cols[j] = c
	}

	n := x.NumRows()

	if !f.classify() {
		out := make([]float64, n)
		for i := range out {
			var sum float64
			for _, s := range f.members {
				sum += s.route(i, cols).value
			}

			out[i] = sum / float64(len(f.members))
		}

		return frame.NewNumeric(f.outName, out), nil
	}

	out := make([]string, n)
	for i := range out {
		votes := map[string]int{}
		for _, s := range f.members {
			votes[s.route(i, cols).label]++
		}

		out[i] = majorityVote(votes)
	}

	return frame.NewColumn(f.outName, f.outKind, out) //nolint:wrapcheck // Labels come from a valid column.
}

// FeatureImportances returns the fraction of members splitting on each
// feature, in input column order.
func (f *StumpForest) FeatureImportances() []FeatureImportance {
	out := make([]FeatureImportance, len(f.features))
	for j, name := range f.features {
		out[j] = FeatureImportance{Feature: name, Importance: f.importance[j]}
	}

	return out
}

// MemberImportances returns each member's importances, aligned with
// [StumpForest.FeatureImportances].
func (f *StumpForest) MemberImportances() [][]float64 {
	out := make([][]float64, len(f.members))
	for i, s := range f.members {
		out[i] = slices.Clone(s.importance)
	}

	return out
}

func (f *StumpForest) OOBScore() (float64, bool) {
	if math.IsNaN(f.oob) {
		return 0, false
	}

	return f.oob, f.hasOOB
}
