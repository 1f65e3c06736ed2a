package estimator

import (
	"fmt"
	"os"

	"github.com/macropower/kfold/api"
	"github.com/macropower/kfold/api/v1beta1"
	"github.com/macropower/kfold/pkg/yaml"
)

// Kind is the document kind of a [Spec].
const Kind = "Estimator"

// StepSpec describes one unit.
type StepSpec struct {
	// Params are passed to the unit's factory.
	Params Params `json:"params,omitempty" jsonschema:"title=Parameters"`
	// Name identifies the step within a pipeline.
	Name string `json:"name,omitempty" jsonschema:"title=Name"`
	// Type is a registered unit type.
	Type string `json:"type" jsonschema:"title=Type"`
}

// Spec is the YAML document describing a [Model]. Exactly one of Estimator
// or Steps is set.
type Spec struct {
	v1beta1.TypeMeta `json:",inline"`

	// Estimator describes a single-unit model.
	Estimator *StepSpec `json:"estimator,omitempty" jsonschema:"title=Estimator"`
	// Steps describe a pipeline, ending with an estimator.
	Steps []StepSpec `json:"steps,omitempty" jsonschema:"title=Steps"`
}

// NewSingleSpec returns a [Spec] for a single unit.
func NewSingleSpec(typ string, params Params) *Spec {
	return &Spec{
		TypeMeta:  v1beta1.NewTypeMeta(Kind),
		Estimator: &StepSpec{Name: typ, Type: typ, Params: params},
	}
}

// NewPipelineSpec returns a [Spec] for a pipeline.
func NewPipelineSpec(steps ...StepSpec) *Spec {
	return &Spec{TypeMeta: v1beta1.NewTypeMeta(Kind), Steps: steps}
}

// Build validates the spec and constructs an unfitted [Model].
func (s *Spec) Build() (*Model, error) {
	if err := s.Check(Kind); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEstimator, err)
	}

	switch {
	case s.Estimator != nil && len(s.Steps) > 0:
		return nil, fmt.Errorf("%w: estimator and steps are mutually exclusive", ErrEstimator)

	case s.Estimator != nil:
		step, err := s.Estimator.build()
		if err != nil {
			return nil, err
		}

		return Single(step)

	case len(s.Steps) > 0:
		steps := make([]Step, len(s.Steps))
		for i, ss := range s.Steps {
			if ss.Name == "" {
				return nil, fmt.Errorf("%w: steps[%d]: name is required", ErrEstimator, i)
			}

			step, err := ss.build()
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}

			steps[i] = step
		}

		return Pipeline(steps...)
	}

	return nil, fmt.Errorf("%w: one of estimator or steps is required", ErrEstimator)
}

func (ss StepSpec) build() (Step, error) {
	u, err := New(ss.Type, ss.Params)
	if err != nil {
		return Step{}, err
	}

	name := ss.Name
	if name == "" {
		name = ss.Type
	}

	return Step{Name: name, Type: ss.Type, Params: ss.Params, Unit: u}, nil
}

// Spec returns the document that rebuilds an unfitted copy of m.
func (m *Model) Spec() *Spec {
	specs := make([]StepSpec, len(m.steps))
	for i, s := range m.steps {
		specs[i] = StepSpec{Name: s.Name, Type: s.Type, Params: s.Params}
	}

	if !m.pipeline {
		return &Spec{TypeMeta: v1beta1.NewTypeMeta(Kind), Estimator: &specs[0]}
	}

	return NewPipelineSpec(specs...)
}

// Marshal encodes the spec as YAML.
func (s *Spec) Marshal() ([]byte, error) {
	b, err := api.MarshalYAML(s)
	if err != nil {
		return nil, fmt.Errorf("marshal estimator: %w", err)
	}

	return b, nil
}

// WriteFile writes the spec to path, replacing any existing file.
func (s *Spec) WriteFile(path string) error {
	b, err := s.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write estimator: %w", err)
	}

	return nil
}

// ReadSpec reads a [Spec] from path.
func ReadSpec(path string) (*Spec, error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEstimator, err)
	}

	s := &Spec{}
	if err := yaml.Unmarshal(data, s, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEstimator, path, err)
	}

	return s, nil
}

// Load reads the spec at path and builds an unfitted [Model].
func Load(path string) (*Model, error) {
	s, err := ReadSpec(path)
	if err != nil {
		return nil, err
	}

	return s.Build()
}
