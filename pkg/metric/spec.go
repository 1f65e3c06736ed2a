package metric

import (
	"fmt"
	"os"

	"github.com/macropower/kfold/api"
	"github.com/macropower/kfold/api/v1beta1"
	"github.com/macropower/kfold/pkg/yaml"
)

// Kind is the document kind of a [Spec].
const Kind = "Metric"

// Spec is the YAML document describing a metric. Exactly one of Type or
// Expression is set.
type Spec struct {
	v1beta1.TypeMeta `json:",inline"`

	// Type names a built-in metric.
	Type string `json:"type,omitempty" jsonschema:"title=Type,enum=mse,enum=rmse,enum=mae,enum=r2,enum=accuracy"`
	// Expression is a CEL expression over `t` and `p`, evaluated per row.
	Expression string `json:"expression,omitempty" jsonschema:"title=Expression"`
	// Aggregate combines per-row expression values.
	Aggregate string `json:"aggregate,omitempty" jsonschema:"title=Aggregate,enum=mean,enum=sum,enum=max,enum=rms"`
}

// NewSpec returns the [Spec] of a built-in metric type.
func NewSpec(metricType string) *Spec {
	return &Spec{TypeMeta: v1beta1.NewTypeMeta(Kind), Type: metricType}
}

// NewExpressionSpec returns the [Spec] of an expression metric.
func NewExpressionSpec(expression, aggregate string) *Spec {
	return &Spec{TypeMeta: v1beta1.NewTypeMeta(Kind), Expression: expression, Aggregate: aggregate}
}

// Build validates the spec and constructs its [Metric].
//
//nolint:ireturn // Metrics are polymorphic.
func (s *Spec) Build() (Metric, error) {
	if err := s.Check(Kind); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetric, err)
	}

	switch {
	case s.Type != "" && s.Expression != "":
		return nil, fmt.Errorf("%w: type and expression are mutually exclusive", ErrMetric)
	case s.Type != "":
		return ByName(s.Type)
	case s.Expression != "":
		return NewExpression(s.Expression, s.Aggregate)
	}

	return nil, fmt.Errorf("%w: one of type or expression is required", ErrMetric)
}

// WriteFile writes the spec to path, replacing any existing file.
func (s *Spec) WriteFile(path string) error {
	b, err := api.MarshalYAML(s)
	if err != nil {
		return fmt.Errorf("marshal metric: %w", err)
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write metric: %w", err)
	}

	return nil
}

// ReadSpec reads a [Spec] from path.
func ReadSpec(path string) (*Spec, error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetric, err)
	}

	s := &Spec{}
	if err := yaml.Unmarshal(data, s, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMetric, path, err)
	}

	return s, nil
}

// Load reads and builds the metric stored at path.
//
//nolint:ireturn // Metrics are polymorphic.
func Load(path string) (Metric, error) {
	s, err := ReadSpec(path)
	if err != nil {
		return nil, err
	}

	return s.Build()
}
