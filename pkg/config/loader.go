package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/macropower/kfold/api"
	"github.com/macropower/kfold/api/v1beta1"
	"github.com/macropower/kfold/api/v1beta1/configs"
	"github.com/macropower/kfold/pkg/yaml"
)

const defaultSourceLines = 4

// Validator checks a decoded document.
type Validator interface {
	Validate(data any) error
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*Loader[v1beta1.Object])

// WithValidator replaces the schema validator.
func WithValidator(v Validator) LoaderOpt {
	return func(l *Loader[v1beta1.Object]) { l.validator = v }
}

// WithSourceLines sets how many lines of source precede error excerpts.
func WithSourceLines(n int) LoaderOpt {
	return func(l *Loader[v1beta1.Object]) { l.sourceLines = n }
}

// Loader decodes one YAML document of type T. Errors from decoding and
// validation are annotated with an excerpt of the document.
type Loader[T v1beta1.Object] struct {
	validator   Validator
	newFunc     func() T
	data        []byte
	sourceLines int
}

// NewLoaderFromBytes creates a [Loader] for data. newFunc returns a T
// holding the defaults, e.g. configs.New.
func NewLoaderFromBytes[T v1beta1.Object](data []byte, newFunc func() T, validator Validator, opts ...LoaderOpt) *Loader[T] {
	o := &Loader[v1beta1.Object]{validator: validator, sourceLines: defaultSourceLines}
	for _, opt := range opts {
		opt(o)
	}

	return &Loader[T]{
		data:        data,
		newFunc:     newFunc,
		validator:   o.validator,
		sourceLines: o.sourceLines,
	}
}

// NewLoaderFromFile creates a [Loader] for the file at path. A missing file
// yields an error matching [fs.ErrNotExist].
func NewLoaderFromFile[T v1beta1.Object](path string, newFunc func() T, validator Validator, opts ...LoaderOpt) (*Loader[T], error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already names the path.
	}

	return NewLoaderFromBytes(data, newFunc, validator, opts...), nil
}

func (l *Loader[T]) wrap(err error) error {
	return yaml.NewErrorWrapper(yaml.WithSource(l.data), yaml.WithSourceLines(l.sourceLines)).Wrap(err)
}

// Validate checks the document against the schema, if there is one.
func (l *Loader[T]) Validate() error {
	var doc any
	if err := yaml.NewDecoder(bytes.NewReader(l.data)).Decode(&doc); err != nil {
		return l.wrap(err)
	}

	if l.validator == nil {
		return nil
	}

	return l.wrap(l.validator.Validate(doc))
}

// Load decodes the document over the defaults from newFunc.
//
//nolint:ireturn // T is the caller's concrete type.
func (l *Loader[T]) Load() (T, error) {
	cfg := l.newFunc()

	if err := yaml.NewDecoder(bytes.NewReader(l.data)).Decode(cfg); err != nil {
		var zero T
		return zero, l.wrap(err)
	}

	cfg.EnsureDefaults()

	return cfg, nil
}

// LoadSettings reads, validates and loads the tool settings at path. A
// missing file yields the defaults.
func LoadSettings(path string) (*configs.Config, error) {
	l, err := NewLoaderFromFile(path, configs.New, configs.DefaultValidator)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("settings file not found, using defaults", slog.String("path", path))
		return configs.New(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg, err := l.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}
