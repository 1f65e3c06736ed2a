package expr

import (
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),

		unaryDouble("abs", math.Abs),
		unaryDouble("sqrt", math.Sqrt),
		unaryDouble("log", math.Log),
		unaryDouble("exp", math.Exp),

		// `pow` raises x to the power y.
		// Example: pow(t - p, 2.0).
		cel.Function("pow",
			cel.Overload("pow_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.BinaryBinding(func(x, y ref.Val) ref.Val {
					xv, ok := x.(types.Double)
					if !ok {
						return types.NewErr("pow: invalid double value")
					}

					yv, ok := y.(types.Double)
					if !ok {
						return types.NewErr("pow: invalid double value")
					}

					return types.Double(math.Pow(float64(xv), float64(yv)))
				}),
			),
		),

		// `indicator` converts a condition into 1.0 or 0.0.
		// Example: indicator(t == p).
		cel.Function("indicator",
			cel.Overload("indicator_bool", []*cel.Type{cel.BoolType}, cel.DoubleType,
				cel.UnaryBinding(func(b ref.Val) ref.Val {
					bv, ok := b.(types.Bool)
					if !ok {
						return types.NewErr("indicator: invalid bool value")
					}

					if bv {
						return types.Double(1)
					}

					return types.Double(0)
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func unaryDouble(name string, fn func(float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(func(x ref.Val) ref.Val {
				xv, ok := x.(types.Double)
				if !ok {
					return types.NewErr("%s: invalid double value", name)
				}

				return types.Double(fn(float64(xv)))
			}),
		),
	)
}

// ConvertToCELValue converts a Go value to a CEL value.
// Unsupported types become null.
//
//nolint:ireturn // Following CEL's function signature.
func ConvertToCELValue(value any) ref.Val {
	switch v := value.(type) {
	case nil:
		return types.NullValue

	case bool:
		return types.Bool(v)

	case int:
		return types.Int(v)

	case int64:
		return types.Int(v)

	case float32:
		return types.Double(float64(v))

	case float64:
		return types.Double(v)

	case string:
		return types.String(v)

	default:
		return types.NullValue
	}
}
