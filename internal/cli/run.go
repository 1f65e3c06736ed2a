package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/macropower/kfold/pkg/estimator"
	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/metric"
)

const (
	runExamples = `  # Run the experiment described by a configuration file:
  kfold run --config experiment.conf --estimator estimator.yaml

  # Run with explicit parameters and a metric:
  kfold run --data-file data.csv --project-path ./projects --name iris \
    --kcv 10 --target species --estimator forest.yaml --metric accuracy.yaml

  # Render and record everything, but do not call qsub:
  kfold run --config experiment.conf --estimator estimator.yaml --dry-run`
)

type RunArgs struct {
	*RootArgs

	Experiment    ExperimentArgs
	EstimatorPath string
	MetricPath    string
	Executable    string
	DryRun        bool
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	ra.Experiment.AddFlags(cmd)

	cmd.Flags().StringVarP(&ra.EstimatorPath, "estimator", "e", "", "Path to the estimator document")
	cmd.Flags().StringVarP(&ra.MetricPath, "metric", "m", "", "Path to the metric document, defaults by target type")
	cmd.Flags().StringVar(&ra.Executable, "executable", "", "kfold binary invoked by the jobs, defaults to this binary")
	cmd.Flags().BoolVar(&ra.DryRun, "dry-run", false, "Write job scripts without submitting them")

	err := cmd.MarkFlagRequired("estimator")
	if err != nil {
		panic(fmt.Errorf("mark estimator flag: %w", err))
	}

	for _, name := range []string{"estimator", "metric"} {
		err = cmd.MarkFlagFilename(name, "yaml", "yml")
		if err != nil {
			panic(fmt.Errorf("mark %s flag: %w", name, err))
		}
	}
}

func NewRunCmd(rootArgs *RootArgs) *cobra.Command {
	args := NewRunArgs(rootArgs)

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Partition, distribute and submit an experiment",
		Example: runExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return args.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	args.AddFlags(cmd)

	return cmd
}

func (ra *RunArgs) Run(ctx context.Context, w io.Writer) error {
	settings, err := ra.Settings()
	if err != nil {
		return err
	}

	cfg, err := ra.Experiment.Resolve()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	model, err := estimator.Load(ra.EstimatorPath)
	if err != nil {
		return fmt.Errorf("load estimator: %w", err)
	}

	var metricSpec *metric.Spec
	if ra.MetricPath != "" {
		metricSpec, err = metric.ReadSpec(ra.MetricPath)
		if err != nil {
			return fmt.Errorf("load metric: %w", err)
		}
	}

	ctx = log.WithExperiment(ctx, cfg.ExperimentName(), 0)

	d, closeLedger, err := newDistributor(ctx, settings, cfg, distributorOptions{
		executable: ra.Executable,
		dryRun:     ra.DryRun,
	})
	if err != nil {
		return err
	}
	defer closeLedger()

	sub, err := d.Run(ctx, model, metricSpec)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	mustN(fmt.Fprintf(w, "Submitted %s as job %s (tasks %s)\n", sub.Folds.Name, sub.Folds.ID, sub.Folds.ArrayRange))
	mustN(fmt.Fprintf(w, "Submitted %s as job %s (after %s)\n", sub.Collector.Name, sub.Collector.ID, sub.Collector.HoldOn))

	return nil
}
