// Package executor runs one fold of a cross-validation experiment.
//
// [Executor.Run] is what each task of the fold array job calls: it fits the
// fold's estimator on the training partition, scores it on both partitions,
// and writes the fold result alongside any feature importances.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/macropower/kfold/pkg/estimator"
	"github.com/macropower/kfold/pkg/experiment"
	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/metric"
	"github.com/macropower/kfold/pkg/plot"
	"github.com/macropower/kfold/pkg/project"
)

// ErrFoldRun is returned when a fold cannot be executed.
var ErrFoldRun = errors.New("fold run")

var tracer = otel.Tracer("github.com/macropower/kfold/pkg/executor")

// Result column names.
const (
	ColumnExperiment      = "experiment_name"
	ColumnFold            = "fold"
	ColumnTrainError      = "train_error"
	ColumnValidationError = "validation_error"
	ColumnOOBError        = "oob_error"

	ColumnFeature    = "feature"
	ColumnImportance = "importance"
	ColumnStd        = "std"
)

// Importance is a ranked feature importance, with the spread across
// ensemble members when known.
type Importance struct {
	Feature    string
	Importance float64
	Std        float64
	HasStd     bool
}

// Result is the outcome of one fold.
type Result struct {
	Experiment      string
	Metric          string
	Importances     []Importance
	Fold            int
	TrainError      float64
	ValidationError float64
	OOBError        float64
	HasOOB          bool
}

// Executor runs folds of one experiment.
type Executor struct {
	plotter plot.Plotter
	layout  project.Layout
	k       int
}

// Opt configures an [Executor].
type Opt func(*Executor)

// WithPlotter sets the plotter used for importance charts.
func WithPlotter(p plot.Plotter) Opt {
	return func(e *Executor) {
		e.plotter = p
	}
}

// New creates an [Executor] for cfg.
func New(cfg experiment.Config, opts ...Opt) *Executor {
	e := &Executor{
		layout:  project.NewLayout(cfg.ProjectPath(), cfg.ExperimentName()),
		k:       cfg.KCV(),
		plotter: plot.NewGonum(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes fold i and writes its result files.
func (e *Executor) Run(ctx context.Context, i int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "fold")
	defer span.End()

	span.SetAttributes(attribute.Int("fold", i), attribute.String("experiment", e.layout.Name()))

	if i < 1 || (e.k > 0 && i > e.k) {
		return nil, fmt.Errorf("%w: %w: %d not in [1, %d]", ErrFoldRun, project.ErrFold, i, e.k)
	}

	logger := log.WithContext(ctx).With(slog.Int("fold", i))

	data, err := e.load(i)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	model, err := estimator.Load(e.layout.Estimator(i))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFoldRun, err)
	}

	m, err := e.metric(i, data.yTrain.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFoldRun, err)
	}

	model.SetWorkers(experiment.AllCores)

	logger.InfoContext(ctx, "fitting estimator",
		slog.Int("rows", data.xTrain.NumRows()),
		slog.String("metric", m.Name()),
	)

	if err := model.Fit(data.xTrain, data.yTrain); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrFoldRun, err)
	}

	res := &Result{
		Experiment: e.layout.Name(),
		Fold:       i,
		Metric:     m.Name(),
	}

	res.TrainError, err = score(model, m, data.xTrain, data.yTrain)
	if err != nil {
		return nil, fmt.Errorf("%w: train: %w", ErrFoldRun, err)
	}

	res.ValidationError, err = score(model, m, data.xValidation, data.yValidation)
	if err != nil {
		return nil, fmt.Errorf("%w: validation: %w", ErrFoldRun, err)
	}

	for _, u := range model.Units() {
		s, ok := u.(estimator.OutOfBagScorer)
		if !ok {
			continue
		}

		if v, ok := s.OOBScore(); ok {
			res.OOBError = 1 - v
			res.HasOOB = true
		}
	}

	res.Importances = rankImportances(model)

	if err := e.writeImportances(i, res.Importances); err != nil {
		return nil, err
	}

	if err := WriteResult(e.layout.FoldResult(i), res); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "fold complete",
		slog.Float64("train_error", res.TrainError),
		slog.Float64("validation_error", res.ValidationError),
		slog.Bool("oob", res.HasOOB),
	)

	return res, nil
}

type partitions struct {
	xTrain      *frame.Frame
	yTrain      *frame.Column
	xValidation *frame.Frame
	yValidation *frame.Column
}

func (e *Executor) load(i int) (*partitions, error) {
	read := func(name string) (*frame.Frame, error) {
		f, err := frame.ReadFile(e.layout.Partition(i, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFoldRun, err)
		}

		return f, nil
	}

	output := func(name string) (*frame.Column, error) {
		f, err := read(name)
		if err != nil {
			return nil, err
		}

		if len(f.Columns) != 1 {
			return nil, fmt.Errorf("%w: %s: expected one column, got %d", ErrFoldRun, name, len(f.Columns))
		}

		return f.Columns[0], nil
	}

	var (
		p   partitions
		err error
	)

	if p.xTrain, err = read(project.TrainInput); err != nil {
		return nil, err
	}

	if p.yTrain, err = output(project.TrainOutput); err != nil {
		return nil, err
	}

	if p.xValidation, err = read(project.ValidationInput); err != nil {
		return nil, err
	}

	if p.yValidation, err = output(project.ValidationOutput); err != nil {
		return nil, err
	}

	return &p, nil
}

//nolint:ireturn // Metrics are polymorphic.
func (e *Executor) metric(i int, kind frame.Kind) (metric.Metric, error) {
	path := e.layout.Metric(i)
	if _, err := os.Stat(path); err == nil {
		return metric.Load(path)
	}

	return metric.Default(kind)
}

func score(model *estimator.Model, m metric.Metric, x *frame.Frame, y *frame.Column) (float64, error) {
	pred, err := model.Predict(x)
	if err != nil {
		return 0, err
	}

	return m.Score(y, pred)
}

// rankImportances returns the importances of the last importance provider
// among the model's units, sorted by descending importance.
func rankImportances(model *estimator.Model) []Importance {
	var provider estimator.FeatureImportanceProvider
	for _, u := range model.Units() {
		if p, ok := u.(estimator.FeatureImportanceProvider); ok {
			provider = p
		}
	}

	if provider == nil {
		return nil
	}

	fis := provider.FeatureImportances()
	out := make([]Importance, len(fis))
	for j, fi := range fis {
		out[j] = Importance{Feature: fi.Feature, Importance: fi.Importance}
	}

	if ens, ok := provider.(estimator.EnsembleImportanceProvider); ok {
		members := ens.MemberImportances()
		for j := range out {
			out[j].Std = memberStd(members, j)
			out[j].HasStd = len(members) > 0
		}
	}

	slices.SortStableFunc(out, func(a, b Importance) int {
		switch {
		case a.Importance > b.Importance:
			return -1
		case a.Importance < b.Importance:
			return 1
		}

		return 0
	})

	return out
}

func memberStd(members [][]float64, j int) float64 {
	var values []float64
	for _, m := range members {
		if j < len(m) {
			values = append(values, m[j])
		}
	}

	if len(values) == 0 {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}

	mean /= float64(len(values))

	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}

	return math.Sqrt(ss / float64(len(values)))
}
