// Package estimator defines trainable models and the optional capabilities
// the orchestrator checks them for.
//
// A [Model] is either a single [Estimator] or a pipeline of named
// [Transformer]s followed by a final [Estimator]. Capabilities such as
// [ParallelizableHint] or [OutOfBagScorer] are discovered by type-asserting
// each element of [Model.Units].
package estimator

import (
	"errors"
	"fmt"

	"github.com/macropower/kfold/pkg/frame"
)

var (
	// ErrEstimator is returned when a model cannot be built, fitted or used.
	ErrEstimator = errors.New("estimator")

	// ErrNotFitted is returned by Predict or Transform before Fit.
	ErrNotFitted = errors.New("not fitted")
)

// Unit is one trainable element of a [Model].
type Unit interface {
	Fit(x *frame.Frame, y *frame.Column) error
}

// Estimator is a [Unit] that predicts an output column.
type Estimator interface {
	Unit
	Predict(x *frame.Frame) (*frame.Column, error)
}

// Transformer is a [Unit] that rewrites input columns.
type Transformer interface {
	Unit
	Transform(x *frame.Frame) (*frame.Frame, error)
}

// ParallelizableHint is implemented by units that accept a worker count.
type ParallelizableHint interface {
	Workers() int
	SetWorkers(n int)
}

// FeatureImportance is the importance score of one input feature.
type FeatureImportance struct {
	Feature    string
	Importance float64
}

// FeatureImportanceProvider is implemented by fitted units that score their
// input features.
type FeatureImportanceProvider interface {
	FeatureImportances() []FeatureImportance
}

// EnsembleImportanceProvider is implemented by ensembles that also expose the
// importances of each member, aligned with [FeatureImportanceProvider].
type EnsembleImportanceProvider interface {
	FeatureImportanceProvider
	MemberImportances() [][]float64
}

// OutOfBagScorer is implemented by units that estimate their accuracy on
// rows left out of each member's sample. The bool result is false when no
// estimate is available.
type OutOfBagScorer interface {
	OOBScore() (float64, bool)
}

// Step is one named unit of a [Model].
type Step struct {
	Unit   Unit
	Params Params
	Name   string
	Type   string
}

// Model is either a single estimator or a pipeline of transformers ending
// in an estimator.
type Model struct {
	final    Estimator
	steps    []Step
	pipeline bool
}

// Single creates a [Model] holding one estimator.
func Single(step Step) (*Model, error) {
	est, ok := step.Unit.(Estimator)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s) is not an estimator", ErrEstimator, step.Name, step.Type)
	}

	return &Model{steps: []Step{step}, final: est}, nil
}

// Pipeline creates a [Model] from ordered steps. Every step but the last
// must be a [Transformer]; the last must be an [Estimator].
func Pipeline(steps ...Step) (*Model, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no steps", ErrEstimator)
	}

	seen := map[string]bool{}
	for i, s := range steps {
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: duplicate step name %q", ErrEstimator, s.Name)
		}
		seen[s.Name] = true

		if i < len(steps)-1 {
			if _, ok := s.Unit.(Transformer); !ok {
				return nil, fmt.Errorf("%w: step %s (%s) is not a transformer", ErrEstimator, s.Name, s.Type)
			}
		}
	}

	last := steps[len(steps)-1]

	est, ok := last.Unit.(Estimator)
	if !ok {
		return nil, fmt.Errorf("%w: final step %s (%s) is not an estimator", ErrEstimator, last.Name, last.Type)
	}

	return &Model{steps: steps, final: est, pipeline: true}, nil
}

// IsPipeline reports whether the model was built as a pipeline.
func (m *Model) IsPipeline() bool { return m.pipeline }

// Steps returns the model's steps in order.
func (m *Model) Steps() []Step { return m.steps }

// Units returns every unit of the model in order. A single estimator yields
// a one-element slice.
func (m *Model) Units() []Unit {
	units := make([]Unit, len(m.steps))
	for i, s := range m.steps {
		units[i] = s.Unit
	}

	return units
}

// Fit fits each transformer in order, feeding its output to the next step,
// then fits the final estimator.
func (m *Model) Fit(x *frame.Frame, y *frame.Column) error {
	cur := x
	for _, s := range m.steps[:len(m.steps)-1] {
		t := s.Unit.(Transformer) //nolint:forcetypeassert // Checked by Pipeline.

		if err := t.Fit(cur, y); err != nil {
			return fmt.Errorf("%w: fit %s: %w", ErrEstimator, s.Name, err)
		}

		next, err := t.Transform(cur)
		if err != nil {
			return fmt.Errorf("%w: transform %s: %w", ErrEstimator, s.Name, err)
		}

		cur = next
	}

	if err := m.final.Fit(cur, y); err != nil {
		return fmt.Errorf("%w: fit %s: %w", ErrEstimator, m.steps[len(m.steps)-1].Name, err)
	}

	return nil
}

// Predict transforms x through every transformer and predicts with the
// final estimator.
func (m *Model) Predict(x *frame.Frame) (*frame.Column, error) {
	cur := x
	for _, s := range m.steps[:len(m.steps)-1] {
		t := s.Unit.(Transformer) //nolint:forcetypeassert // Checked by Pipeline.

		next, err := t.Transform(cur)
		if err != nil {
			return nil, fmt.Errorf("%w: transform %s: %w", ErrEstimator, s.Name, err)
		}

		cur = next
	}

	y, err := m.final.Predict(cur)
	if err != nil {
		return nil, fmt.Errorf("%w: predict %s: %w", ErrEstimator, m.steps[len(m.steps)-1].Name, err)
	}

	return y, nil
}

// SetWorkers applies n to every [ParallelizableHint] unit and reports
// whether any unit accepted it.
func (m *Model) SetWorkers(n int) bool {
	found := false
	for _, u := range m.Units() {
		if h, ok := u.(ParallelizableHint); ok {
			h.SetWorkers(n)
			found = true
		}
	}

	return found
}

// Parallelizable reports whether any unit implements [ParallelizableHint].
func (m *Model) Parallelizable() bool {
	for _, u := range m.Units() {
		if _, ok := u.(ParallelizableHint); ok {
			return true
		}
	}

	return false
}
