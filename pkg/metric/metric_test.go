package metric_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/metric"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	m, err := metric.Default(frame.KindNumeric)
	require.NoError(t, err)
	assert.Equal(t, metric.TypeMSE, m.Name())

	m, err = metric.Default(frame.KindCategory)
	require.NoError(t, err)
	assert.Equal(t, metric.TypeAccuracy, m.Name())

	for _, kind := range []frame.Kind{frame.KindText, frame.KindBool} {
		_, err = metric.Default(kind)

		var ute *metric.UnsupportedTypeError
		require.ErrorAs(t, err, &ute)
		assert.Equal(t, kind, ute.Kind)
	}
}

func TestBuiltins(t *testing.T) {
	t.Parallel()

	yTrue := frame.NewNumeric("y", []float64{1, 2, 3, 4})
	yPred := frame.NewNumeric("y", []float64{1, 2, 3, 6})

	tcs := map[string]struct {
		want float64
	}{
		metric.TypeMSE:  {want: 1},
		metric.TypeRMSE: {want: 1},
		metric.TypeMAE:  {want: 0.5},
		metric.TypeR2:   {want: 1 - 4.0/5.0},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			m, err := metric.ByName(name)
			require.NoError(t, err)

			got, err := m.Score(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestAccuracy(t *testing.T) {
	t.Parallel()

	got, err := metric.Accuracy{}.Score(
		frame.NewCategory("y", []string{"a", "b", "a", "c"}),
		frame.NewCategory("y", []string{"a", "b", "b", "c"}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-12)
}

func TestScore_Errors(t *testing.T) {
	t.Parallel()

	_, err := metric.MSE{}.Score(frame.NewNumeric("y", []float64{1}), frame.NewNumeric("y", []float64{1, 2}))
	require.ErrorIs(t, err, metric.ErrMetric)

	_, err = metric.MSE{}.Score(frame.NewNumeric("y", nil), frame.NewNumeric("y", nil))
	require.ErrorIs(t, err, metric.ErrMetric)

	_, err = metric.MAE{}.Score(frame.NewCategory("y", []string{"a"}), frame.NewCategory("y", []string{"a"}))
	require.ErrorIs(t, err, metric.ErrMetric)

	_, err = metric.ByName("rmsee")
	require.ErrorIs(t, err, metric.ErrUnknownMetric)
}

func TestR2Score(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, metric.R2Score([]float64{2, 2}, []float64{2, 2}), 0)
	assert.InDelta(t, 0.0, metric.R2Score([]float64{2, 2}, []float64{1, 2}), 0)
	assert.True(t, math.IsNaN(metric.R2Score(nil, nil)))
}

func TestExpression(t *testing.T) {
	t.Parallel()

	yTrue := frame.NewNumeric("y", []float64{1, 2, 3})
	yPred := frame.NewNumeric("y", []float64{2, 2, 1})

	tcs := map[string]struct {
		expression string
		aggregate  string
		want       float64
	}{
		"mean abs":     {expression: "abs(t - p)", want: 1},
		"sum abs":      {expression: "abs(t - p)", aggregate: "sum", want: 3},
		"max abs":      {expression: "abs(t - p)", aggregate: "MAX", want: 2},
		"rms of error": {expression: "t - p", aggregate: "rms", want: math.Sqrt(5.0 / 3.0)},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			m, err := metric.NewExpression(tc.expression, tc.aggregate)
			require.NoError(t, err)

			got, err := m.Score(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}

	m, err := metric.NewExpression("indicator(t != p)", "")
	require.NoError(t, err)

	got, err := m.Score(
		frame.NewCategory("y", []string{"a", "b"}),
		frame.NewCategory("y", []string{"a", "c"}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)
	assert.Equal(t, "mean(indicator(t != p))", m.Name())

	_, err = metric.NewExpression("t - p", "median")
	require.ErrorIs(t, err, metric.ErrMetric)

	_, err = metric.NewExpression("t -", "")
	require.ErrorIs(t, err, metric.ErrMetric)
}

func TestSpec(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path := filepath.Join(dir, "METRIC_EXP.yaml")
	require.NoError(t, metric.NewSpec(metric.TypeMAE).WriteFile(path))

	m, err := metric.Load(path)
	require.NoError(t, err)
	assert.Equal(t, metric.TypeMAE, m.Name())

	path = filepath.Join(dir, "expr.yaml")
	require.NoError(t, metric.NewExpressionSpec("pow(t - p, 2.0)", "sum").WriteFile(path))

	s, err := metric.ReadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "pow(t - p, 2.0)", s.Expression)

	m, err = s.Build()
	require.NoError(t, err)
	assert.Equal(t, "sum(pow(t - p, 2.0))", m.Name())

	tcs := map[string]string{
		"wrong kind": "apiVersion: kfold.jacobcolvin.com/v1beta1\nkind: Estimator\ntype: mse\n",
		"both":       "apiVersion: kfold.jacobcolvin.com/v1beta1\nkind: Metric\ntype: mse\nexpression: t\n",
		"neither":    "apiVersion: kfold.jacobcolvin.com/v1beta1\nkind: Metric\n",
		"unknown":    "apiVersion: kfold.jacobcolvin.com/v1beta1\nkind: Metric\nbogus: 1\n",
	}

	for name, content := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := filepath.Join(t.TempDir(), "m.yaml")
			require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

			_, err := metric.Load(p)
			require.ErrorIs(t, err, metric.ErrMetric)
		})
	}
}
