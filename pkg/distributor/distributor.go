// Package distributor prepares an experiment's project directory and submits
// its cluster jobs.
//
// A [Distributor] runs idempotent stages: it initializes the project and
// writes the configuration snapshot, partitions the dataset unless the fold
// directories already exist, writes the estimator and metric documents into
// every fold, then renders and submits one array job over all folds and a
// collector job that waits for it. Every stage can be rerun safely.
package distributor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/aymanbagabas/go-udiff"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/kfold/pkg/estimator"
	"github.com/macropower/kfold/pkg/experiment"
	"github.com/macropower/kfold/pkg/fold"
	"github.com/macropower/kfold/pkg/ledger"
	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/metric"
	"github.com/macropower/kfold/pkg/project"
	"github.com/macropower/kfold/pkg/scheduler"
)

// ErrDistribution is returned when fold artifacts cannot be distributed or
// jobs cannot be submitted.
var ErrDistribution = errors.New("distribution")

var tracer = otel.Tracer("github.com/macropower/kfold/pkg/distributor")

// Distributor orchestrates the preparation and submission of one experiment.
type Distributor struct {
	submitter scheduler.Submitter
	ledger    *ledger.Ledger
	layout    project.Layout
	jobs      Jobs
	cfg       experiment.Config
	workers   int
}

// Opt configures a [Distributor].
type Opt func(*Distributor)

// WithLedger records every submission in l.
func WithLedger(l *ledger.Ledger) Opt {
	return func(d *Distributor) {
		d.ledger = l
	}
}

// WithJobs sets the job script settings.
func WithJobs(j Jobs) Opt {
	return func(d *Distributor) {
		d.jobs = j
	}
}

// WithWorkers bounds the number of concurrent fold writes.
func WithWorkers(n int) Opt {
	return func(d *Distributor) {
		if n > 0 {
			d.workers = n
		}
	}
}

// New creates a [Distributor] for cfg. The configuration must set a fold
// count of at least 2.
func New(cfg experiment.Config, submitter scheduler.Submitter, opts ...Opt) (*Distributor, error) {
	if err := cfg.RequireKCV(); err != nil {
		return nil, err
	}

	d := &Distributor{
		cfg:       cfg,
		layout:    project.NewLayout(cfg.ProjectPath(), cfg.ExperimentName()),
		submitter: submitter,
		jobs:      DefaultJobs(),
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Layout returns the project layout of the experiment.
func (d *Distributor) Layout() project.Layout {
	return d.layout
}

// Submission holds the scheduler handles of a submitted experiment.
type Submission struct {
	Folds     *scheduler.Job
	Collector *scheduler.Job
}

// Run executes every stage in order. A nil metricSpec leaves metric
// selection to the fold jobs.
func (d *Distributor) Run(ctx context.Context, model *estimator.Model, metricSpec *metric.Spec) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "run")
	defer span.End()

	span.SetAttributes(
		attribute.String("experiment", d.layout.Name()),
		attribute.Int("kcv", d.cfg.KCV()),
	)

	if err := d.Initialize(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if _, err := d.Partition(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := d.Distribute(ctx, model, metricSpec); err != nil {
		span.RecordError(err)
		return nil, err
	}

	sub, err := d.Submit(ctx, model)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return sub, nil
}

// Initialize creates the project directories and writes the configuration
// snapshot. When a previous snapshot differs, the difference is logged
// before it is replaced.
func (d *Distributor) Initialize(ctx context.Context) error {
	_, span := tracer.Start(ctx, "initialize")
	defer span.End()

	logger := log.WithContext(ctx)

	for _, dir := range []string{
		d.layout.Root(),
		d.layout.ExperimentDir(),
		d.layout.ErrorsDir(),
		d.layout.LogsDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}

	var snapshot bytes.Buffer
	if err := d.cfg.WriteSnapshot(&snapshot); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	path := d.layout.ConfigSnapshot()

	previous, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("initialize: read snapshot: %w", err)
	case !bytes.Equal(previous, snapshot.Bytes()):
		logger.WarnContext(ctx, "experiment configuration changed",
			slog.String("path", path),
			slog.String("diff", udiff.Unified("previous", "current", string(previous), snapshot.String())),
		)
	}

	if err := os.WriteFile(path, snapshot.Bytes(), 0o644); err != nil {
		return fmt.Errorf("initialize: write snapshot: %w", err)
	}

	logger.DebugContext(ctx, "initialized project", slog.String("path", d.layout.Root()))

	return nil
}

// Partition splits the dataset into the fold directories unless exactly K
// of them already exist. It reports whether partitioning ran.
func (d *Distributor) Partition(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "partition-stage")
	defer span.End()

	logger := log.WithContext(ctx)
	k := d.cfg.KCV()

	folds, err := d.layout.FoldDirs()
	if err != nil {
		return false, fmt.Errorf("%w: %w", fold.ErrPartition, err)
	}

	if len(folds) == k {
		if !d.layout.Marked(project.StagePartitioned) {
			logger.WarnContext(ctx, "fold directories exist without a partition marker, skipping partitioning",
				slog.Int("folds", len(folds)),
			)
		}

		span.SetAttributes(attribute.Bool("skipped", true))

		return false, nil
	}

	if len(folds) > 0 {
		logger.WarnContext(ctx, "fold count does not match kcv, repartitioning",
			slog.Int("folds", len(folds)),
			slog.Int("kcv", k),
		)
	}

	if err := d.cfg.RequireTarget(); err != nil {
		return false, err
	}

	for _, s := range []project.Stage{project.StagePartitioned, project.StageDistributed} {
		if err := d.layout.Clear(s); err != nil {
			return false, fmt.Errorf("%w: %w", fold.ErrPartition, err)
		}
	}

	data, err := fold.LoadDataset(d.cfg.DataFile())
	if err != nil {
		return false, err
	}

	p := fold.NewPartitioner(d.layout, k, d.cfg.TargetVariable(), fold.WithWorkers(d.workers))
	if _, err := p.Partition(ctx, data); err != nil {
		return false, err
	}

	if err := d.layout.Mark(project.StagePartitioned); err != nil {
		return false, fmt.Errorf("%w: %w", fold.ErrPartition, err)
	}

	logger.InfoContext(ctx, "partitioned dataset",
		slog.Int("rows", data.NumRows()),
		slog.Int("kcv", k),
	)

	return true, nil
}

// Distribute writes the estimator document, and the metric document when
// metricSpec is not nil, into every fold directory. A metric document left
// from an earlier run is removed when no metric is given.
func (d *Distributor) Distribute(ctx context.Context, model *estimator.Model, metricSpec *metric.Spec) error {
	ctx, span := tracer.Start(ctx, "distribute")
	defer span.End()

	if model == nil {
		return fmt.Errorf("%w: no estimator", ErrDistribution)
	}

	if metricSpec != nil {
		if _, err := metricSpec.Build(); err != nil {
			return fmt.Errorf("%w: %w", ErrDistribution, err)
		}
	}

	spec := model.Spec()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i := 1; i <= d.cfg.KCV(); i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			return d.distributeFold(i, spec, metricSpec)
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrDistribution, err)
	}

	if err := d.layout.Mark(project.StageDistributed); err != nil {
		return fmt.Errorf("%w: %w", ErrDistribution, err)
	}

	log.WithContext(ctx).InfoContext(ctx, "distributed estimator",
		slog.Int("folds", d.cfg.KCV()),
		slog.Bool("metric", metricSpec != nil),
	)

	return nil
}

func (d *Distributor) distributeFold(i int, spec *estimator.Spec, metricSpec *metric.Spec) error {
	if _, err := os.Stat(d.layout.FoldDir(i)); err != nil {
		return fmt.Errorf("fold %d: %w", i, err)
	}

	if err := spec.WriteFile(d.layout.Estimator(i)); err != nil {
		return fmt.Errorf("fold %d: %w", i, err)
	}

	if metricSpec == nil {
		err := os.Remove(d.layout.Metric(i))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("fold %d: %w", i, err)
		}

		return nil
	}

	if err := metricSpec.WriteFile(d.layout.Metric(i)); err != nil {
		return fmt.Errorf("fold %d: %w", i, err)
	}

	return nil
}
