// Package frame provides a small typed, columnar table used for datasets,
// fold partitions and result tables.
//
// A [Frame] is an ordered set of equally sized [Column]s. Each column has a
// [Kind], which is persisted in CSV headers as a `name:kind` suffix so that
// partition artifacts keep their types between processes.
package frame

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind describes the values held by a [Column].
type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindCategory Kind = "category"
	KindText     Kind = "text"
	KindBool     Kind = "bool"
)

// AllKinds lists every supported [Kind].
var AllKinds = []Kind{KindNumeric, KindCategory, KindText, KindBool}

var (
	// ErrColumnNotFound is returned when a named column does not exist.
	ErrColumnNotFound = errors.New("column not found")

	// ErrShape is returned when column lengths disagree.
	ErrShape = errors.New("shape mismatch")
)

// ParseKind parses a [Kind] name.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(AllKinds, k) {
		return k, true
	}

	return "", false
}

// Column is a named, typed vector. Numeric columns keep their values in
// Floats; all other kinds keep them in Strings.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// NewNumeric creates a numeric [Column].
func NewNumeric(name string, values []float64) *Column {
	return &Column{Name: name, Kind: KindNumeric, Floats: values}
}

// NewCategory creates a categorical [Column].
func NewCategory(name string, values []string) *Column {
	return &Column{Name: name, Kind: KindCategory, Strings: values}
}

// NewColumn creates a [Column] of the given kind from raw cell values.
func NewColumn(name string, kind Kind, cells []string) (*Column, error) {
	if kind != KindNumeric {
		return &Column{Name: name, Kind: kind, Strings: slices.Clone(cells)}, nil
	}

	values := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}

		values[i] = v
	}

	return NewNumeric(name, values), nil
}

// Len returns the number of values.
func (c *Column) Len() int {
	if c.Kind == KindNumeric {
		return len(c.Floats)
	}

	return len(c.Strings)
}

// Cell formats the i-th value for output.
func (c *Column) Cell(i int) string {
	if c.Kind == KindNumeric {
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	}

	return c.Strings[i]
}

// Take returns a new column holding the values at idx, in order.
func (c *Column) Take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == KindNumeric {
		out.Floats = make([]float64, len(idx))
		for i, j := range idx {
			out.Floats[i] = c.Floats[j]
		}

		return out
	}

	out.Strings = make([]string, len(idx))
	for i, j := range idx {
		out.Strings[i] = c.Strings[j]
	}

	return out
}

// Frame is an ordered collection of equally sized columns.
type Frame struct {
	Columns []*Column
}

// New creates a [Frame], checking that all columns have the same length.
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{Columns: columns}
	if len(columns) == 0 {
		return f, nil
	}

	n := columns[0].Len()
	for _, c := range columns[1:] {
		if c.Len() != n {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d", ErrShape, c.Name, c.Len(), n)
		}
	}

	return f, nil
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if len(f.Columns) == 0 {
		return 0
	}

	return f.Columns[0].Len()
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}

	return names
}

// Column returns the column with the given name.
func (f *Frame) Column(name string) (*Column, error) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// Split separates the named target column from the remaining input columns.
func (f *Frame) Split(target string) (*Frame, *Column, error) {
	y, err := f.Column(target)
	if err != nil {
		return nil, nil, err
	}

	x := &Frame{Columns: make([]*Column, 0, len(f.Columns)-1)}
	for _, c := range f.Columns {
		if c.Name != target {
			x.Columns = append(x.Columns, c)
		}
	}

	return x, y, nil
}

// Take returns a new frame holding the rows at idx, in order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{Columns: make([]*Column, len(f.Columns))}
	for i, c := range f.Columns {
		out.Columns[i] = c.Take(idx)
	}

	return out
}

// Append adds columns to the frame.
func (f *Frame) Append(columns ...*Column) error {
	for _, c := range columns {
		if len(f.Columns) > 0 && c.Len() != f.NumRows() {
			return fmt.Errorf("%w: column %q has %d rows, expected %d", ErrShape, c.Name, c.Len(), f.NumRows())
		}

		f.Columns = append(f.Columns, c)
	}

	return nil
}
