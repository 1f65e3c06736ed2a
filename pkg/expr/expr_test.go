package expr_test

import (
	"testing"

	"github.com/google/cel-go/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/pkg/expr"
)

func TestMetricEnvironment(t *testing.T) {
	t.Parallel()

	env, err := expr.NewMetricEnvironment()
	require.NoError(t, err)

	tcs := map[string]struct {
		vars       map[string]any
		expression string
		want       float64
	}{
		"squared error": {
			expression: "pow(t - p, 2.0)",
			vars:       map[string]any{"t": 3.0, "p": 1.0},
			want:       4,
		},
		"absolute error": {
			expression: "abs(t - p)",
			vars:       map[string]any{"t": 1.0, "p": 3.5},
			want:       2.5,
		},
		"sqrt": {
			expression: "sqrt(t)",
			vars:       map[string]any{"t": 9.0, "p": 0.0},
			want:       3,
		},
		"log and exp": {
			expression: "log(exp(t))",
			vars:       map[string]any{"t": 2.0, "p": 0.0},
			want:       2,
		},
		"indicator on strings": {
			expression: "indicator(t == p)",
			vars:       map[string]any{"t": "a", "p": "a"},
			want:       1,
		},
		"boolean result": {
			expression: "t != p",
			vars:       map[string]any{"t": "a", "p": "a"},
			want:       0,
		},
		"integer result": {
			expression: "size(t)",
			vars:       map[string]any{"t": "abc", "p": ""},
			want:       3,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			program, err := env.Compile(tc.expression)
			require.NoError(t, err)

			got, err := expr.EvalFloat(program, tc.vars)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestEvalFloat_Errors(t *testing.T) {
	t.Parallel()

	env, err := expr.NewMetricEnvironment()
	require.NoError(t, err)

	_, err = env.Compile("t +")
	require.Error(t, err)

	program, err := env.Compile(`"x" + t`)
	require.NoError(t, err)

	_, err = expr.EvalFloat(program, map[string]any{"t": "y", "p": ""})
	require.ErrorIs(t, err, expr.ErrResultType)

	program, err = env.Compile("sqrt(t)")
	require.NoError(t, err)

	_, err = expr.EvalFloat(program, map[string]any{"t": "y", "p": ""})
	require.Error(t, err)
}

func TestConvertToCELValue(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.5, expr.ConvertToCELValue(1.5).Value(), 0)
	assert.Equal(t, "a", expr.ConvertToCELValue("a").Value())
	assert.Equal(t, true, expr.ConvertToCELValue(true).Value())
	assert.Equal(t, int64(2), expr.ConvertToCELValue(2).Value())
	assert.Equal(t, types.NullValue, expr.ConvertToCELValue(struct{}{}))
}
