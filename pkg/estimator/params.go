package estimator

import (
	"fmt"
	"math"
	"slices"

	"github.com/macropower/kfold/internal/suggest"
)

// Params holds the decoded parameters of one step.
type Params map[string]any

// Int returns the integer parameter key, or def when unset.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("param %s: %d overflows int", key, n)
		}

		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("param %s: %v is not an integer", key, n)
		}

		return int(n), nil
	}

	return 0, fmt.Errorf("param %s: expected integer, got %T", key, v)
}

// Float returns the numeric parameter key, or def when unset.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}

	return 0, fmt.Errorf("param %s: expected number, got %T", key, v)
}

// Bool returns the boolean parameter key, or def when unset.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("param %s: expected boolean, got %T", key, v)
	}

	return b, nil
}

// Check fails when p holds a key outside allowed.
func (p Params) Check(allowed ...string) error {
	for k := range p {
		if !slices.Contains(allowed, k) {
			return fmt.Errorf("unknown param %q%s", k, suggest.Hint(k, allowed))
		}
	}

	return nil
}
