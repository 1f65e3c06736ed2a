package estimator

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/macropower/kfold/internal/suggest"
)

// ErrUnknownType is returned for an unregistered unit type.
var ErrUnknownType = errors.New("unknown estimator type")

// Factory builds a [Unit] from its parameters.
type Factory func(params Params) (Unit, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func init() {
	Register(TypeMean, newMean)
	Register(TypeMajority, newMajority)
	Register(TypeStandardScaler, newStandardScaler)
	Register(TypeStumpForest, newStumpForest)
}

// Register makes a unit type available to [New]. Registering an existing
// type replaces its factory.
func Register(typ string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[typ] = f
}

// Types returns the registered unit types, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return slices.Sorted(maps.Keys(registry))
}

// New builds a unit of the registered type.
//
//nolint:ireturn // Units are polymorphic.
func New(typ string, params Params) (Unit, error) {
	registryMu.RLock()
	f, ok := registry[typ]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q%s", ErrUnknownType, typ, suggest.Hint(typ, Types()))
	}

	u, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEstimator, typ, err)
	}

	return u, nil
}
