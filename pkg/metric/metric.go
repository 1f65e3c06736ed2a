// Package metric provides scoring functions comparing true and predicted
// values, and their YAML document encoding.
package metric

import (
	"errors"
	"fmt"
	"math"

	"github.com/macropower/kfold/internal/suggest"
	"github.com/macropower/kfold/pkg/frame"
)

var (
	// ErrMetric is returned when a metric cannot be computed.
	ErrMetric = errors.New("metric")

	// ErrUnknownMetric is returned for an unrecognised metric type.
	ErrUnknownMetric = errors.New("unknown metric")
)

// UnsupportedTypeError is returned when no default metric exists for the
// kind of a training output column.
type UnsupportedTypeError struct {
	Kind frame.Kind
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported output type %q: no default metric, supply one explicitly", e.Kind)
}

// Metric compares true and predicted values.
type Metric interface {
	Name() string
	Score(yTrue, yPred *frame.Column) (float64, error)
}

// Built-in metric types.
const (
	TypeMSE      = "mse"
	TypeRMSE     = "rmse"
	TypeMAE      = "mae"
	TypeR2       = "r2"
	TypeAccuracy = "accuracy"
)

// Types lists the built-in metric types.
var Types = []string{TypeAccuracy, TypeMAE, TypeMSE, TypeR2, TypeRMSE}

// Default selects a metric for an output column kind: numeric columns use
// mean squared error and categorical columns use accuracy.
func Default(kind frame.Kind) (Metric, error) {
	switch kind {
	case frame.KindNumeric:
		return MSE{}, nil
	case frame.KindCategory:
		return Accuracy{}, nil
	}

	return nil, &UnsupportedTypeError{Kind: kind}
}

// ByName returns the built-in metric of the given type.
func ByName(name string) (Metric, error) {
	switch name {
	case TypeMSE:
		return MSE{}, nil
	case TypeRMSE:
		return RMSE{}, nil
	case TypeMAE:
		return MAE{}, nil
	case TypeR2:
		return R2{}, nil
	case TypeAccuracy:
		return Accuracy{}, nil
	}

	return nil, fmt.Errorf("%w: %q%s", ErrUnknownMetric, name, suggest.Hint(name, Types))
}

type MSE struct{}

func (MSE) Name() string { return TypeMSE }

func (MSE) Score(yTrue, yPred *frame.Column) (float64, error) {
	t, p, err := numericPair(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := range t {
		d := t[i] - p[i]
		sum += d * d
	}

	return sum / float64(len(t)), nil
}

type RMSE struct{}

func (RMSE) Name() string { return TypeRMSE }

func (RMSE) Score(yTrue, yPred *frame.Column) (float64, error) {
	mse, err := MSE{}.Score(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	return math.Sqrt(mse), nil
}

type MAE struct{}

func (MAE) Name() string { return TypeMAE }

func (MAE) Score(yTrue, yPred *frame.Column) (float64, error) {
	t, p, err := numericPair(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := range t {
		sum += math.Abs(t[i] - p[i])
	}

	return sum / float64(len(t)), nil
}

// R2 is the coefficient of determination. A constant true column scores 1
// for a perfect prediction and 0 otherwise.
type R2 struct{}

func (R2) Name() string { return TypeR2 }

func (R2) Score(yTrue, yPred *frame.Column) (float64, error) {
	t, p, err := numericPair(yTrue, yPred)
	if err != nil {
		return 0, err
	}

	return r2(t, p), nil
}

// Accuracy is the fraction of rows whose predicted value equals the true
// value. It accepts columns of any kind.
type Accuracy struct{}

func (Accuracy) Name() string { return TypeAccuracy }

func (Accuracy) Score(yTrue, yPred *frame.Column) (float64, error) {
	if err := checkPair(yTrue, yPred); err != nil {
		return 0, err
	}

	correct := 0
	for i := range yTrue.Len() {
		if yTrue.Cell(i) == yPred.Cell(i) {
			correct++
		}
	}

	return float64(correct) / float64(yTrue.Len()), nil
}

func r2(t, p []float64) float64 {
	var mean float64
	for _, v := range t {
		mean += v
	}
	mean /= float64(len(t))

	var ssRes, ssTot float64
	for i := range t {
		ssRes += (t[i] - p[i]) * (t[i] - p[i])
		ssTot += (t[i] - mean) * (t[i] - mean)
	}

	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}

		return 0
	}

	return 1 - ssRes/ssTot
}

func checkPair(yTrue, yPred *frame.Column) error {
	if yTrue.Len() != yPred.Len() {
		return fmt.Errorf("%w: %d true values but %d predictions", ErrMetric, yTrue.Len(), yPred.Len())
	}

	if yTrue.Len() == 0 {
		return fmt.Errorf("%w: no values to score", ErrMetric)
	}

	return nil
}

func numericPair(yTrue, yPred *frame.Column) ([]float64, []float64, error) {
	if err := checkPair(yTrue, yPred); err != nil {
		return nil, nil, err
	}

	for _, c := range []*frame.Column{yTrue, yPred} {
		if c.Kind != frame.KindNumeric {
			return nil, nil, fmt.Errorf("%w: column %q has kind %s, expected %s",
				ErrMetric, c.Name, c.Kind, frame.KindNumeric)
		}
	}

	return yTrue.Floats, yPred.Floats, nil
}

// R2Score computes the coefficient of determination of two equal-length
// slices.
func R2Score(t, p []float64) float64 {
	if len(t) == 0 || len(t) != len(p) {
		return math.NaN()
	}

	return r2(t, p)
}
