// Package collector aggregates the per-fold outputs of an experiment into
// experiment-level tables and charts.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/macropower/kfold/pkg/executor"
	"github.com/macropower/kfold/pkg/experiment"
	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/plot"
	"github.com/macropower/kfold/pkg/project"
)

// ErrMissingArtifact is returned when fold outputs needed for collection do
// not exist.
var ErrMissingArtifact = errors.New("missing artifact")

var tracer = otel.Tracer("github.com/macropower/kfold/pkg/collector")

// Collector aggregates the fold outputs of one experiment.
type Collector struct {
	plotter plot.Plotter
	layout  project.Layout
	k       int
}

// Opt configures a [Collector].
type Opt func(*Collector)

// WithPlotter sets the plotter used for the summary charts.
func WithPlotter(p plot.Plotter) Opt {
	return func(c *Collector) {
		c.plotter = p
	}
}

// New creates a [Collector] for cfg, which must set the fold count.
func New(cfg experiment.Config, opts ...Opt) (*Collector, error) {
	if err := cfg.RequireKCV(); err != nil {
		return nil, err
	}

	c := &Collector{
		layout:  project.NewLayout(cfg.ProjectPath(), cfg.ExperimentName()),
		k:       cfg.KCV(),
		plotter: plot.NewGonum(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Summary holds the collected tables. Importances is nil when no fold
// produced an importance table.
type Summary struct {
	Results     *frame.Frame
	Importances *frame.Frame
}

// Collect reads every fold result, writes the results table and error chart,
// then summarizes feature importances when any fold has them.
func (c *Collector) Collect(ctx context.Context) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "collect")
	defer span.End()

	span.SetAttributes(attribute.String("experiment", c.layout.Name()), attribute.Int("kcv", c.k))

	logger := log.WithContext(ctx)

	results, err := c.collectResults()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := frame.WriteFile(c.layout.Results(), results.frame()); err != nil {
		return nil, fmt.Errorf("write results: %w", err)
	}

	if err := c.plotter.Box(c.layout.ErrorPlot(), results.box(c.layout.Name(), c.k)); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "collected results",
		slog.String("path", c.layout.Results()),
		slog.Bool("oob", results.hasOOB),
	)

	summary := &Summary{Results: results.frame()}

	imps, err := c.collectImportances()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if imps == nil {
		logger.DebugContext(ctx, "no feature importances to summarize")
		return summary, nil
	}

	summary.Importances = imps.frame()

	if err := frame.WriteFile(c.layout.Importances(), summary.Importances); err != nil {
		return nil, fmt.Errorf("write importances: %w", err)
	}

	bars := plot.Bars{
		Title: fmt.Sprintf("Summarized Feature Importance for %s over all folds (k=%d)",
			c.layout.Name(), c.k),
		YLabel: "Importance",
		Labels: imps.features,
		Values: imps.mean,
		Errors: imps.std,
	}
	if err := c.plotter.Bars(c.layout.ImportancePlot(), bars); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "summarized feature importances",
		slog.String("path", c.layout.Importances()),
		slog.Int("features", len(imps.features)),
		slog.Int("folds", len(imps.folds)),
	)

	return summary, nil
}

type resultRows struct {
	experiment []string
	fold       []string
	train      []float64
	validation []float64
	oob        []float64
	hasOOB     bool
}

func (c *Collector) collectResults() (*resultRows, error) {
	var missing []string
	for i := 1; i <= c.k; i++ {
		if _, err := os.Stat(c.layout.FoldResult(i)); err != nil {
			missing = append(missing, project.FoldName(i))
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no results for %s", ErrMissingArtifact, strings.Join(missing, ", "))
	}

	rows := &resultRows{}
	for i := 1; i <= c.k; i++ {
		if err := rows.read(c.layout.FoldResult(i)); err != nil {
			return nil, fmt.Errorf("%s: %w", project.FoldName(i), err)
		}
	}

	return rows, nil
}

func (r *resultRows) read(path string) error {
	f, err := frame.ReadFile(path)
	if err != nil {
		return err
	}

	cols := map[string]*frame.Column{}
	for _, name := range []string{
		executor.ColumnExperiment,
		executor.ColumnFold,
		executor.ColumnTrainError,
		executor.ColumnValidationError,
	} {
		col, err := f.Column(name)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		cols[name] = col
	}

	train, validation := cols[executor.ColumnTrainError], cols[executor.ColumnValidationError]
	if train.Kind != frame.KindNumeric || validation.Kind != frame.KindNumeric {
		return fmt.Errorf("%s: %w: error columns must be numeric", path, frame.ErrShape)
	}

	oob, err := f.Column(executor.ColumnOOBError)
	if err != nil || oob.Kind != frame.KindNumeric {
		oob = nil
	}

	for row := range f.NumRows() {
		r.experiment = append(r.experiment, cols[executor.ColumnExperiment].Cell(row))
		r.fold = append(r.fold, cols[executor.ColumnFold].Cell(row))
		r.train = append(r.train, train.Floats[row])
		r.validation = append(r.validation, validation.Floats[row])

		if oob == nil {
			r.oob = append(r.oob, math.NaN())
			continue
		}

		r.oob = append(r.oob, oob.Floats[row])
		r.hasOOB = true
	}

	return nil
}

func (r *resultRows) frame() *frame.Frame {
	cols := []*frame.Column{
		frame.NewCategory(executor.ColumnExperiment, r.experiment),
		frame.NewCategory(executor.ColumnFold, r.fold),
		frame.NewNumeric(executor.ColumnTrainError, r.train),
		frame.NewNumeric(executor.ColumnValidationError, r.validation),
	}

	if r.hasOOB {
		cols = append(cols, frame.NewNumeric(executor.ColumnOOBError, r.oob))
	}

	return &frame.Frame{Columns: cols}
}

// box compares the root of the out-of-bag errors, or of the training errors
// when no fold has one, with the validation errors as recorded.
func (r *resultRows) box(name string, k int) plot.Box {
	first := plot.Series{Label: "train", Values: sqrtAll(r.train)}
	if r.hasOOB {
		first = plot.Series{Label: "OOB", Values: sqrtAll(r.oob)}
	}

	return plot.Box{
		Title:  fmt.Sprintf("Errors for %s over all folds (k=%d)", name, k),
		XLabel: "Error",
		YLabel: "RMSE",
		Series: []plot.Series{
			first,
			{Label: "validation", Values: r.validation},
		},
	}
}

func sqrtAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Sqrt(v)
	}

	return out
}
