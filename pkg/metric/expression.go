package metric

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/macropower/kfold/internal/suggest"
	"github.com/macropower/kfold/pkg/expr"
	"github.com/macropower/kfold/pkg/frame"
)

// Aggregations of per-row expression values.
const (
	AggregateMean = "mean"
	AggregateSum  = "sum"
	AggregateMax  = "max"
	AggregateRMS  = "rms"
)

// Aggregates lists the supported aggregations.
var Aggregates = []string{AggregateMax, AggregateMean, AggregateRMS, AggregateSum}

// Expression is a metric defined by a CEL expression evaluated once per row,
// with `t` bound to the true value and `p` to the prediction. Numeric
// columns bind doubles; other kinds bind strings.
type Expression struct {
	program    cel.Program
	expression string
	aggregate  string
}

// NewExpression compiles a metric expression. An empty aggregate means
// [AggregateMean].
func NewExpression(expression, aggregate string) (*Expression, error) {
	if aggregate == "" {
		aggregate = AggregateMean
	}

	aggregate = strings.ToLower(aggregate)
	switch aggregate {
	case AggregateMean, AggregateSum, AggregateMax, AggregateRMS:
	default:
		return nil, fmt.Errorf("%w: unknown aggregate %q%s", ErrMetric, aggregate, suggest.Hint(aggregate, Aggregates))
	}

	env, err := expr.NewMetricEnvironment()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetric, err)
	}

	program, err := env.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetric, err)
	}

	return &Expression{
		program:    program,
		expression: expression,
		aggregate:  aggregate,
	}, nil
}

func (e *Expression) Name() string { return e.aggregate + "(" + e.expression + ")" }

// Source returns the expression text.
func (e *Expression) Source() string { return e.expression }

// Aggregate returns the aggregation applied to per-row values.
func (e *Expression) Aggregate() string { return e.aggregate }

func (e *Expression) Score(yTrue, yPred *frame.Column) (float64, error) {
	if err := checkPair(yTrue, yPred); err != nil {
		return 0, err
	}

	values := make([]float64, yTrue.Len())
	for i := range values {
		v, err := expr.EvalFloat(e.program, map[string]any{
			"t": cellValue(yTrue, i),
			"p": cellValue(yPred, i),
		})
		if err != nil {
			return 0, fmt.Errorf("%w: row %d: %w", ErrMetric, i, err)
		}

		values[i] = v
	}

	return aggregate(e.aggregate, values), nil
}

func cellValue(c *frame.Column, i int) any {
	if c.Kind == frame.KindNumeric {
		return c.Floats[i]
	}

	return c.Strings[i]
}

func aggregate(kind string, values []float64) float64 {
	switch kind {
	case AggregateSum:
		var sum float64
		for _, v := range values {
			sum += v
		}

		return sum

	case AggregateMax:
		out := math.Inf(-1)
		for _, v := range values {
			out = max(out, v)
		}

		return out

	case AggregateRMS:
		var sum float64
		for _, v := range values {
			sum += v * v
		}

		return math.Sqrt(sum / float64(len(values)))
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
