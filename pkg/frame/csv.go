package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrCSV is returned when a CSV table cannot be read or written.
var ErrCSV = errors.New("csv")

// ReadOpt configures [Read].
type ReadOpt func(*readOptions)

type readOptions struct {
	dropMissing bool
}

// DropMissing drops rows containing an empty or "NA" cell.
func DropMissing() ReadOpt {
	return func(o *readOptions) {
		o.dropMissing = true
	}
}

// Read decodes a CSV table. The first record is the header; each header
// cell may carry a `name:kind` annotation. Unannotated columns have their
// kind inferred from the data.
func Read(r io.Reader, opts ...ReadOpt) (*Frame, error) {
	o := &readOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCSV, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrCSV)
	}

	header := records[0]
	rows := records[1:]

	if o.dropMissing {
		rows = dropMissingRows(rows)
	}

	f := &Frame{Columns: make([]*Column, len(header))}
	for j, h := range header {
		name, kind, annotated := parseHeader(h)

		cells := make([]string, len(rows))
		for i, row := range rows {
			cells[i] = row[j]
		}

		if !annotated {
			kind = Infer(cells)
		}

		c, err := NewColumn(name, kind, cells)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCSV, err)
		}

		f.Columns[j] = c
	}

	return f, nil
}

// ReadFile reads a CSV table from a file.
func ReadFile(path string, opts ...ReadOpt) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // Read-only.

	f, err := Read(file, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return f, nil
}

// WriteOpt configures [Write].
type WriteOpt func(*writeOptions)

type writeOptions struct {
	annotate bool
}

// Annotate writes `name:kind` headers so kinds survive a round-trip.
func Annotate() WriteOpt {
	return func(o *writeOptions) {
		o.annotate = true
	}
}

// Write encodes the frame as CSV.
func Write(w io.Writer, f *Frame, opts ...WriteOpt) error {
	o := &writeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cw := csv.NewWriter(w)

	header := make([]string, len(f.Columns))
	for j, c := range f.Columns {
		header[j] = c.Name
		if o.annotate {
			header[j] = c.Name + ":" + string(c.Kind)
		}
	}

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("%w: %w", ErrCSV, err)
	}

	record := make([]string, len(f.Columns))
	for i := range f.NumRows() {
		for j, c := range f.Columns {
			record[j] = c.Cell(i)
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("%w: %w", ErrCSV, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrCSV, err)
	}

	return nil
}

// WriteFile writes the frame to a CSV file, replacing any existing file.
func WriteFile(path string, f *Frame, opts ...WriteOpt) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := Write(file, f, opts...); err != nil {
		_ = file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

// Infer picks a [Kind] for unannotated cells.
func Infer(cells []string) Kind {
	if len(cells) == 0 {
		return KindCategory
	}

	numeric, boolean := true, true
	for _, cell := range cells {
		cell = strings.TrimSpace(cell)
		if numeric {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
			}
		}

		if boolean {
			lc := strings.ToLower(cell)
			if lc != "true" && lc != "false" {
				boolean = false
			}
		}

		if !numeric && !boolean {
			return KindCategory
		}
	}

	if numeric {
		return KindNumeric
	}

	return KindBool
}

func parseHeader(h string) (string, Kind, bool) {
	i := strings.LastIndex(h, ":")
	if i < 0 {
		return h, "", false
	}

	kind, ok := ParseKind(h[i+1:])
	if !ok {
		return h, "", false
	}

	return h[:i], kind, true
}

func dropMissingRows(rows [][]string) [][]string {
	out := rows[:0:0]

	for _, row := range rows {
		missing := false
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" || cell == "NA" {
				missing = true
				break
			}
		}

		if !missing {
			out = append(out, row)
		}
	}

	return out
}
