package expr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// ErrResultType is returned when an expression does not evaluate to a number.
var ErrResultType = errors.New("expression result is not a number")

// celMu serializes environment creation and compilation, which share
// state inside cel-go.
var celMu sync.Mutex

// Environment is a [*cel.Env] with the kfold function library, safe for
// concurrent compilation.
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates an [Environment] with opts and the kfold library.
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	celMu.Lock()
	defer celMu.Unlock()

	env, err := cel.NewEnv(append(opts, cel.Lib(lib{}))...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &Environment{env: env}, nil
}

// MustNewEnvironment is [NewEnvironment] for static options; it panics on
// error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// NewMetricEnvironment declares the per-row variables of a metric
// expression: `t` (true value) and `p` (prediction).
func NewMetricEnvironment() (*Environment, error) {
	return NewEnvironment(
		cel.Variable("t", cel.DynType),
		cel.Variable("p", cel.DynType),
	)
}

// Compile checks expression and plans a program for it.
//
//nolint:ireturn // cel.Program is an interface.
func (e *Environment) Compile(expression string) (cel.Program, error) {
	celMu.Lock()
	defer celMu.Unlock()

	checked, iss := e.env.Compile(expression)
	if err := iss.Err(); err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}

	prg, err := e.env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("plan expression: %w", err)
	}

	return prg, nil
}

// EvalFloat evaluates program with vars as a number. Int, uint and bool
// results are converted; bool is 1 or 0.
func EvalFloat(program cel.Program, vars map[string]any) (float64, error) {
	out, _, err := program.Eval(vars)
	if err != nil {
		return 0, fmt.Errorf("evaluate expression: %w", err)
	}

	switch v := out.(type) {
	case types.Double:
		return float64(v), nil
	case types.Int:
		return float64(v), nil
	case types.Uint:
		return float64(v), nil
	case types.Bool:
		if v {
			return 1, nil
		}

		return 0, nil
	}

	return 0, fmt.Errorf("%w: got %s", ErrResultType, out.Type().TypeName())
}
