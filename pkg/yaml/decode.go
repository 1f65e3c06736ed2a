package yaml

import (
	"bytes"
	"errors"
	"io"

	"github.com/goccy/go-yaml"
)

// Decoder wraps [yaml.Decoder], converting parser errors into [*Error] so
// that they can be annotated with the offending source.
type Decoder struct {
	d *yaml.Decoder
}

// DecodeOpt configures a [Decoder].
type DecodeOpt func(*decodeOptions)

type decodeOptions struct {
	strict bool
}

// Strict rejects fields that are not present in the target struct.
func Strict() DecodeOpt {
	return func(o *decodeOptions) {
		o.strict = true
	}
}

func NewDecoder(r io.Reader, opts ...DecodeOpt) *Decoder {
	options := &decodeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	yamlOpts := []yaml.DecodeOption{yaml.AllowDuplicateMapKey()}
	if options.strict {
		yamlOpts = append(yamlOpts, yaml.DisallowUnknownField())
	}

	return &Decoder{
		d: yaml.NewDecoder(r, yamlOpts...),
	}
}

func (d *Decoder) Decode(v any) error {
	err := d.d.Decode(v)
	if err == nil {
		return nil
	}

	var yamlErr yaml.Error
	if errors.As(err, &yamlErr) {
		return &Error{
			Err:   errors.New(yamlErr.GetMessage()),
			Token: yamlErr.GetToken(),
		}
	}

	//nolint:wrapcheck // Return the original error if it's not a [yaml.Error].
	return err
}

// Unmarshal decodes data into v, attaching the source to any [*Error].
func Unmarshal(data []byte, v any, opts ...DecodeOpt) error {
	err := NewDecoder(bytes.NewReader(data), opts...).Decode(v)
	if err != nil {
		return NewErrorWrapper(WithSource(data)).Wrap(err)
	}

	return nil
}
