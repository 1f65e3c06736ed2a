package estimator

import (
	"fmt"
	"math"
	"slices"

	"github.com/macropower/kfold/pkg/frame"
)

const (
	TypeMean           = "mean"
	TypeMajority       = "majority"
	TypeStandardScaler = "standard-scaler"
)

// Mean predicts the mean of the training output for every row.
type Mean struct {
	name   string
	value  float64
	fitted bool
}

func newMean(params Params) (Unit, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}

	return &Mean{}, nil
}

func (m *Mean) Fit(_ *frame.Frame, y *frame.Column) error {
	if y.Kind != frame.KindNumeric {
		return fmt.Errorf("mean requires a numeric output, got %s", y.Kind)
	}

	if y.Len() == 0 {
		return fmt.Errorf("mean: empty output")
	}

	var sum float64
	for _, v := range y.Floats {
		sum += v
	}

	m.name = y.Name
	m.value = sum / float64(y.Len())
	m.fitted = true

	return nil
}

func (m *Mean) Predict(x *frame.Frame) (*frame.Column, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}

	out := make([]float64, x.NumRows())
	for i := range out {
		out[i] = m.value
	}

	return frame.NewNumeric(m.name, out), nil
}

// Majority predicts the most frequent training output value for every row.
// Ties resolve to the smallest value in string order.
type Majority struct {
	name   string
	value  string
	kind   frame.Kind
	fitted bool
}

func newMajority(params Params) (Unit, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}

	return &Majority{}, nil
}

func (m *Majority) Fit(_ *frame.Frame, y *frame.Column) error {
	if y.Len() == 0 {
		return fmt.Errorf("majority: empty output")
	}

	m.name = y.Name
	m.kind = y.Kind
	m.value = mode(y, nil)
	m.fitted = true

	return nil
}

func (m *Majority) Predict(x *frame.Frame) (*frame.Column, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}

	cells := make([]string, x.NumRows())
	for i := range cells {
		cells[i] = m.value
	}

	return frame.NewColumn(m.name, m.kind, cells) //nolint:wrapcheck // Cells come from a valid column.
}

// mode returns the most frequent cell of y among rows idx, or all rows when
// idx is nil.
func mode(y *frame.Column, idx []int) string {
	counts := map[string]int{}
	if idx == nil {
		for i := range y.Len() {
			counts[y.Cell(i)]++
		}
	} else {
		for _, i := range idx {
			counts[y.Cell(i)]++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	best, bestN := "", -1
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}

	return best
}

// StandardScaler centres numeric columns on zero with unit variance.
// Non-numeric columns pass through unchanged; zero-variance columns are only
// centred.
type StandardScaler struct {
	means  map[string]float64
	scales map[string]float64
	fitted bool
}

func newStandardScaler(params Params) (Unit, error) {
	if err := params.Check(); err != nil {
		return nil, err
	}

	return &StandardScaler{}, nil
}

func (s *StandardScaler) Fit(x *frame.Frame, _ *frame.Column) error {
	s.means = map[string]float64{}
	s.scales = map[string]float64{}

	for _, c := range x.Columns {
		if c.Kind != frame.KindNumeric || c.Len() == 0 {
			continue
		}

		var mean float64
		for _, v := range c.Floats {
			mean += v
		}
		mean /= float64(c.Len())

		var variance float64
		for _, v := range c.Floats {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(c.Len())

		scale := math.Sqrt(variance)
		if scale == 0 {
			scale = 1
		}

		s.means[c.Name] = mean
		s.scales[c.Name] = scale
	}

	s.fitted = true

	return nil
}

func (s *StandardScaler) Transform(x *frame.Frame) (*frame.Frame, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}

	out := &frame.Frame{Columns: make([]*frame.Column, len(x.Columns))}
	for i, c := range x.Columns {
		mean, ok := s.means[c.Name]
		if !ok || c.Kind != frame.KindNumeric {
			out.Columns[i] = c
			continue
		}

		scale := s.scales[c.Name]

		values := make([]float64, c.Len())
		for j, v := range c.Floats {
			values[j] = (v - mean) / scale
		}

		out.Columns[i] = frame.NewNumeric(c.Name, values)
	}

	return out, nil
}
